// Package httphandler is the HTTP driving adapter serving the local REST API.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"figpanel/internal/application"
	"figpanel/internal/domain/model"
	"figpanel/internal/domain/port/driven"
	"figpanel/internal/domain/transform"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	creds       driven.CredentialStore
	remote      driven.RemoteClient
	runs        driven.SyncRunStore
	wizard      *application.Wizard
	autofill    *application.AutoFill
	collection  *application.CollectionService
	cookieNames []string
	logger      *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	creds driven.CredentialStore,
	remote driven.RemoteClient,
	runs driven.SyncRunStore,
	wizard *application.Wizard,
	autofill *application.AutoFill,
	collection *application.CollectionService,
	cookieNames []string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		creds:       creds,
		remote:      remote,
		runs:        runs,
		wizard:      wizard,
		autofill:    autofill,
		collection:  collection,
		cookieNames: cookieNames,
		logger:      logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/credential", h.CredentialStatus)
	mux.HandleFunc("PUT /api/v1/credential", h.PutCredential)
	mux.HandleFunc("DELETE /api/v1/credential", h.DeleteCredential)
	mux.HandleFunc("POST /api/v1/credential/logout", h.Logout)

	mux.HandleFunc("POST /api/v1/wizard/open", h.OpenWizard)
	mux.HandleFunc("GET /api/v1/wizard", h.WizardState)
	mux.HandleFunc("POST /api/v1/wizard/proceed", h.ProceedWizard)
	mux.HandleFunc("POST /api/v1/wizard/retry", h.RetryWizard)
	mux.HandleFunc("POST /api/v1/wizard/close", h.CloseWizard)

	mux.HandleFunc("POST /api/v1/autofill/input", h.AutofillInput)
	mux.HandleFunc("PUT /api/v1/autofill/draft", h.SetAutofillDraft)
	mux.HandleFunc("GET /api/v1/autofill", h.AutofillResult)

	mux.HandleFunc("GET /api/v1/items", h.ListItems)
	mux.HandleFunc("GET /api/v1/items/{id}", h.GetItem)
	mux.HandleFunc("POST /api/v1/items/refresh", h.RefreshItems)

	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)

	mux.HandleFunc("GET /api/v1/sessions", h.ListSessions)
	mux.HandleFunc("POST /api/v1/sessions/{id}/resume", h.ResumeSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/cancel-failed", h.CancelFailed)

	mux.HandleFunc("POST /api/v1/csv/parse", h.ParseCSV)
	mux.HandleFunc("POST /api/v1/csv/sync", h.SyncCSV)

	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// CredentialStatus reports which tier currently holds the credential.
func (h *Handler) CredentialStatus(w http.ResponseWriter, r *http.Request) {
	tier, ok, err := h.creds.CurrentTier(r.Context())
	if err != nil {
		h.logger.Error("failed to read credential tier", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := CredentialStatusResponse{HasValue: ok}
	if ok {
		resp.Tier = string(tier)
	}
	writeJSON(w, http.StatusOK, resp)
}

// PutCredential stores a pasted session credential into the requested tier.
// The value must parse as cookie pairs carrying the required cookie names.
func (h *Handler) PutCredential(w http.ResponseWriter, r *http.Request) {
	var req PutCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tier := model.CredentialTier(req.Tier)
	if !model.ValidTier(tier) {
		writeError(w, http.StatusBadRequest, "unknown credential tier")
		return
	}

	if _, err := model.ParseCredential(req.Value, h.cookieNames); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.creds.Store(r.Context(), req.Value, tier); err != nil {
		if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error("failed to store credential", "tier", tier, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, CredentialStatusResponse{HasValue: true, Tier: string(tier)})
}

// DeleteCredential removes the credential from every tier.
func (h *Handler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	if err := h.creds.Clear(r.Context()); err != nil {
		h.logger.Error("failed to clear credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Logout ends the local session: the session-tier credential is dropped,
// longer-lived tiers survive.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.creds.ClearSession(r.Context()); err != nil {
		h.logger.Error("failed to clear session credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// OpenWizard opens the sync wizard, running the credential check.
func (h *Handler) OpenWizard(w http.ResponseWriter, r *http.Request) {
	state, err := h.wizard.Open(r.Context())
	if err != nil {
		h.logger.Error("failed to open wizard", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// WizardState returns the current wizard snapshot.
func (h *Handler) WizardState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.wizard.State())
}

// ProceedWizard starts the sync run from a validated wizard.
func (h *Handler) ProceedWizard(w http.ResponseWriter, r *http.Request) {
	state, err := h.wizard.Proceed(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// RetryWizard retries the failed wizard phase.
func (h *Handler) RetryWizard(w http.ResponseWriter, r *http.Request) {
	state, err := h.wizard.Retry(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// CloseWizard dismisses the wizard.
func (h *Handler) CloseWizard(w http.ResponseWriter, _ *http.Request) {
	h.wizard.Close()
	w.WriteHeader(http.StatusNoContent)
}

// AutofillInput feeds reference-field input into the debounced scrape workflow.
func (h *Handler) AutofillInput(w http.ResponseWriter, r *http.Request) {
	var req AutofillInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.autofill.Input(req.Value)
	w.WriteHeader(http.StatusAccepted)
}

// SetAutofillDraft replaces the current add-item form draft.
func (h *Handler) SetAutofillDraft(w http.ResponseWriter, r *http.Request) {
	var form transform.FormRecord
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.autofill.SetDraft(form)
	w.WriteHeader(http.StatusNoContent)
}

// AutofillResult returns the current draft and the latest scrape outcome.
func (h *Handler) AutofillResult(w http.ResponseWriter, _ *http.Request) {
	draft, result := h.autofill.Result()
	writeJSON(w, http.StatusOK, struct {
		Draft  transform.FormRecord        `json:"draft"`
		Result *application.AutoFillResult `json:"result"`
	}{Draft: draft, Result: result})
}

// ListItems returns the locally cached collection.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	figs, err := h.collection.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list items", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]FigureResponse, 0, len(figs))
	for _, fig := range figs {
		resp = append(resp, toFigureResponse(fig))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetItem returns a single cached figure by remote id.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	remoteID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	fig, err := h.collection.Get(r.Context(), remoteID)
	if err != nil {
		h.logger.Error("failed to get item", "remote_id", remoteID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if fig == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	writeJSON(w, http.StatusOK, toFigureResponse(*fig))
}

// RefreshItems replaces the local mirror with the remote collection.
func (h *Handler) RefreshItems(w http.ResponseWriter, r *http.Request) {
	n, err := h.collection.RefreshFromRemote(r.Context())
	if err != nil {
		h.logger.Error("failed to refresh collection", "error", err)
		writeError(w, http.StatusBadGateway, "collection refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Figures: n})
}

// ListRuns returns recent sync runs, most recent first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list sync runs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]SyncRunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toSyncRunResponse(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSessions returns paused or in-progress server-side sync sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.remote.ListSessions(r.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusBadGateway, "session listing failed")
		return
	}
	if sessions == nil {
		sessions = []model.SyncSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// ResumeSession resumes a paused server-side session.
func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.remote.ResumeSession(r.Context(), r.PathValue("id")); err != nil {
		h.logger.Error("failed to resume session", "session_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusBadGateway, "session resume failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelFailed discards the failed items of a server-side session.
func (h *Handler) CancelFailed(w http.ResponseWriter, r *http.Request) {
	if err := h.remote.CancelFailed(r.Context(), r.PathValue("id")); err != nil {
		h.logger.Error("failed to cancel failed items", "session_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusBadGateway, "cancel failed items failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ParseCSV uploads a CSV export for parse-only validation.
func (h *Handler) ParseCSV(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing csv file upload")
		return
	}
	defer file.Close()

	report, err := h.remote.ParseCSV(r.Context(), file)
	if err != nil {
		h.logger.Error("failed to parse csv", "error", err)
		writeError(w, http.StatusBadGateway, "csv parse failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SyncCSV uploads a CSV export and queues its rows under a fresh session id.
// Requires a stored, parseable credential.
func (h *Handler) SyncCSV(w http.ResponseWriter, r *http.Request) {
	raw, err := h.creds.Retrieve(r.Context())
	if err != nil {
		h.logger.Error("failed to read credential", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	cred, err := model.ParseCredential(raw, h.cookieNames)
	if err != nil {
		writeError(w, http.StatusConflict, "no usable credential stored")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing csv file upload")
		return
	}
	defer file.Close()

	sessionID := application.NewSessionID()
	report, err := h.remote.SyncCSV(r.Context(), cred, file, sessionID)
	if err != nil {
		if errors.Is(err, driven.ErrCredentialInvalid) {
			writeError(w, http.StatusUnauthorized, "remote rejected the credential")
			return
		}
		h.logger.Error("failed to sync csv", "session_id", sessionID, "error", err)
		writeError(w, http.StatusBadGateway, "csv sync failed")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		SessionID string `json:"session_id"`
		*model.CSVReport
	}{SessionID: sessionID, CSVReport: report})
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
