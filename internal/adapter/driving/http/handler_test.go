package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"figpanel/internal/application"
	"figpanel/internal/domain/model"
)

type stubCredStore struct {
	value string
	tier  model.CredentialTier
}

func (s *stubCredStore) Store(_ context.Context, value string, tier model.CredentialTier) error {
	s.value, s.tier = value, tier
	return nil
}

func (s *stubCredStore) Retrieve(context.Context) (string, error) { return s.value, nil }

func (s *stubCredStore) CurrentTier(context.Context) (model.CredentialTier, bool, error) {
	return s.tier, s.value != "", nil
}

func (s *stubCredStore) HasValue(context.Context) (bool, error) { return s.value != "", nil }
func (s *stubCredStore) Clear(context.Context) error            { s.value = ""; return nil }

func (s *stubCredStore) ClearSession(context.Context) error {
	if s.tier == model.TierSession {
		s.value = ""
	}
	return nil
}

type stubRemote struct {
	sessions    []model.SyncSession
	figures     []model.Figure
	validateRes *model.ValidationResult
}

func (s *stubRemote) ValidateCredential(context.Context, model.ParsedCredential) (*model.ValidationResult, error) {
	if s.validateRes != nil {
		return s.validateRes, nil
	}
	return &model.ValidationResult{Valid: true, Username: "collector"}, nil
}

func (s *stubRemote) StartSync(_ context.Context, _ model.ParsedCredential, sessionID string) (*model.SyncResult, error) {
	return &model.SyncResult{SessionID: sessionID}, nil
}

func (s *stubRemote) QueueStats(context.Context) (*model.QueueStats, error) {
	return &model.QueueStats{}, nil
}

func (s *stubRemote) ScrapeItem(_ context.Context, remoteID int64) (*model.ScrapedItem, error) {
	return &model.ScrapedItem{RemoteID: remoteID, Name: "Scraped"}, nil
}

func (s *stubRemote) FetchCollection(context.Context) ([]model.Figure, error) {
	return s.figures, nil
}

func (s *stubRemote) ParseCSV(context.Context, io.Reader) (*model.CSVReport, error) {
	return &model.CSVReport{Rows: 2, Parsed: 2}, nil
}

func (s *stubRemote) SyncCSV(context.Context, model.ParsedCredential, io.Reader, string) (*model.CSVReport, error) {
	return nil, errors.New("not used")
}

func (s *stubRemote) ListSessions(context.Context) ([]model.SyncSession, error) {
	return s.sessions, nil
}

func (s *stubRemote) ResumeSession(context.Context, string) error { return nil }
func (s *stubRemote) CancelFailed(context.Context, string) error  { return nil }

type stubFigureStore struct {
	figs []model.Figure
}

func (s *stubFigureStore) Upsert(_ context.Context, fig model.Figure) error {
	s.figs = append(s.figs, fig)
	return nil
}

func (s *stubFigureStore) GetByRemoteID(_ context.Context, remoteID int64) (*model.Figure, error) {
	for i := range s.figs {
		if s.figs[i].RemoteID == remoteID {
			return &s.figs[i], nil
		}
	}
	return nil, nil
}

func (s *stubFigureStore) ListAll(context.Context) ([]model.Figure, error) { return s.figs, nil }

func (s *stubFigureStore) ReplaceAll(_ context.Context, figs []model.Figure) error {
	s.figs = figs
	return nil
}

func (s *stubFigureStore) Count(context.Context) (int, error) { return len(s.figs), nil }

type stubRunStore struct {
	runs []model.SyncRun
}

func (s *stubRunStore) Insert(_ context.Context, run model.SyncRun) error {
	s.runs = append(s.runs, run)
	return nil
}

func (s *stubRunStore) ListRecent(context.Context, int) ([]model.SyncRun, error) {
	return s.runs, nil
}

var testCookieNames = []string{"session_id", "user_id"}

type fixture struct {
	creds   *stubCredStore
	remote  *stubRemote
	figures *stubFigureStore
	runs    *stubRunStore
	server  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	creds := &stubCredStore{}
	remote := &stubRemote{}
	figures := &stubFigureStore{}
	runs := &stubRunStore{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	collection := application.NewCollectionService(figures, remote)
	wizard := application.NewWizard(creds, remote, runs, collection, testCookieNames, 50*time.Millisecond)
	autofill := application.NewAutoFill(remote, 10*time.Millisecond)
	t.Cleanup(autofill.Close)
	t.Cleanup(wizard.Close)

	h := NewHandler(creds, remote, runs, wizard, autofill, collection, testCookieNames, logger)
	return &fixture{
		creds:   creds,
		remote:  remote,
		figures: figures,
		runs:    runs,
		server:  NewServeMux(h, logger),
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestPutCredential_StoresValidValue(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/credential",
		`{"value":"session_id=abc; user_id=42","tier":"session"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TierSession, f.creds.tier)
	assert.Equal(t, "session_id=abc; user_id=42", f.creds.value)
}

func TestPutCredential_RejectsMissingCookies(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/credential",
		`{"value":"other=1","tier":"session"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, f.creds.value)
}

func TestPutCredential_RejectsUnknownTier(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/credential",
		`{"value":"session_id=abc; user_id=42","tier":"forever"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCredentialStatus(t *testing.T) {
	f := newFixture(t)
	f.creds.value = "session_id=abc; user_id=42"
	f.creds.tier = model.TierPersistent

	rec := f.do(t, http.MethodGet, "/api/v1/credential", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp CredentialStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.HasValue)
	assert.Equal(t, "persistent", resp.Tier)
}

func TestLogout_ClearsOnlySessionTier(t *testing.T) {
	f := newFixture(t)
	f.creds.value = "session_id=abc; user_id=42"
	f.creds.tier = model.TierPersistent

	rec := f.do(t, http.MethodPost, "/api/v1/credential/logout", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, f.creds.value, "persistent credential survives logout")
}

func TestWizardOpen_WithoutCredentialAsksForEntry(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/wizard/open", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var state application.WizardState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, model.PhaseChecking, state.Phase)
	assert.True(t, state.NeedsCredential)
}

func TestWizardOpen_WithCredentialValidates(t *testing.T) {
	f := newFixture(t)
	f.creds.value = "session_id=abc; user_id=42"

	rec := f.do(t, http.MethodPost, "/api/v1/wizard/open", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var state application.WizardState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, model.PhaseValidating, state.Phase)
	assert.Equal(t, "collector", state.Identity)
}

func TestWizardProceed_BeforeValidationConflicts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/wizard/proceed", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetItem(t *testing.T) {
	f := newFixture(t)
	f.figures.figs = []model.Figure{{
		RemoteID: 287,
		Name:     "Hatsune Miku",
		Status:   model.StatusOwned,
		Notes:    "**mint** condition",
	}}

	rec := f.do(t, http.MethodGet, "/api/v1/items/287", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp FigureResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Hatsune Miku", resp.Name)
	assert.Contains(t, resp.NotesHTML, "<strong>mint</strong>")
}

func TestGetItem_NotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/items/999", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetItem_BadID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/items/abc", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshItems(t *testing.T) {
	f := newFixture(t)
	f.remote.figures = []model.Figure{{RemoteID: 1}, {RemoteID: 2}}

	rec := f.do(t, http.MethodPost, "/api/v1/items/refresh", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Figures)
	assert.Len(t, f.figures.figs, 2)
}

func TestListRuns(t *testing.T) {
	f := newFixture(t)
	f.runs.runs = []model.SyncRun{{
		SessionID: "123-abcd1234",
		Status:    model.RunStatusCompleted,
		Queued:    5,
	}}

	rec := f.do(t, http.MethodGet, "/api/v1/runs?limit=5", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []SyncRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "completed", resp[0].Status)
	assert.NotNil(t, resp[0].Warnings)
}

func TestListRuns_InvalidLimit(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/runs?limit=zero", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSessions_EmptyIsArray(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/sessions", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestAutofillInputAndResult(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/autofill/input", `{"value":"287"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/api/v1/autofill", "")
		return strings.Contains(rec.Body.String(), `"remote_id":287`)
	}, time.Second, 10*time.Millisecond)
}

func TestParseCSV_MissingFile(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/csv/parse", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
