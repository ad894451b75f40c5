// Package remote implements the RemoteClient port against the hobby-database
// service's sync and scrape REST APIs using resty.
package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gregjones/httpcache"

	"figpanel/internal/domain/model"
	"figpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RemoteClient = (*Client)(nil)

// cookieOrder is the canonical ordering for rendered credential headers.
var cookieOrder = []string{"session_id", "user_id"}

// Client talks to two remote bases: the main collection API and the
// sync/scrape API, each independently overridable. Both attach bearer auth
// and transparently retry once after a single-flight token refresh on 401.
type Client struct {
	api    *resty.Client
	syncer *resty.Client
	tokens TokenSource
}

// Config carries the remote endpoints and auth wiring for NewClient.
type Config struct {
	APIBaseURL  string
	SyncBaseURL string
	Tokens      TokenSource

	// HTTPClient overrides the underlying transport; intended for tests
	// against httptest servers.
	HTTPClient *http.Client
}

// NewClient creates a remote API client. Scrape and collection GETs go
// through an in-memory ETag cache so unchanged item pages cost a
// conditional request only.
func NewClient(cfg Config) *Client {
	api := newRestyClient(cfg.HTTPClient, cfg.Tokens)
	api.SetBaseURL(cfg.APIBaseURL)
	if cfg.HTTPClient == nil {
		api.SetTransport(httpcache.NewMemoryCacheTransport())
	}

	syncer := newRestyClient(cfg.HTTPClient, cfg.Tokens)
	syncer.SetBaseURL(cfg.SyncBaseURL)

	return &Client{api: api, syncer: syncer, tokens: cfg.Tokens}
}

// newRestyClient builds a resty client with bearer auth middleware and the
// 401 refresh-then-retry discipline shared by both bases.
func newRestyClient(httpClient *http.Client, tokens TokenSource) *resty.Client {
	var c *resty.Client
	if httpClient != nil {
		c = resty.NewWithClient(httpClient)
	} else {
		c = resty.New()
	}

	c.SetTimeout(5 * time.Minute)
	c.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		token, err := tokens.Token(req.Context())
		if err != nil {
			return fmt.Errorf("obtain bearer token: %w", err)
		}
		if token != "" {
			req.SetAuthToken(token)
		}
		return nil
	})

	// One transparent retry after a background token refresh. The refresh is
	// single-flighted inside the TokenSource, so concurrent 401s share it.
	c.SetRetryCount(1)
	c.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil || resp == nil || resp.StatusCode() != http.StatusUnauthorized {
			return false
		}
		if _, rerr := tokens.Refresh(resp.Request.Context()); rerr != nil {
			slog.Warn("token refresh after 401 failed", "error", rerr)
			return false
		}
		return true
	})

	return c
}

// errorBody is the remote service's standard error envelope.
type errorBody struct {
	Error string `json:"error"`
}

// ValidateCredential checks the borrowed credential against the remote account.
func (c *Client) ValidateCredential(ctx context.Context, cred model.ParsedCredential) (*model.ValidationResult, error) {
	var result model.ValidationResult
	var apiErr errorBody

	resp, err := c.syncer.R().
		SetContext(ctx).
		SetBody(map[string]string{"credential": cred.CookieHeader(cookieOrder)}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/v1/credential/validate")
	if err != nil {
		return nil, fmt.Errorf("validate credential: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return &result, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		// The remote rejected the session cookie itself, not our bearer.
		return &model.ValidationResult{Valid: false, Error: errText(apiErr, resp)}, nil
	default:
		return nil, fmt.Errorf("validate credential: %s", errText(apiErr, resp))
	}
}

// StartSync initiates a full synchronization run and blocks until the remote
// reports the outcome. Per-item failures arrive as warnings, never an error.
func (c *Client) StartSync(ctx context.Context, cred model.ParsedCredential, sessionID string) (*model.SyncResult, error) {
	var result model.SyncResult
	var apiErr errorBody

	resp, err := c.syncer.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"credential": cred.CookieHeader(cookieOrder),
			"session_id": sessionID,
		}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/v1/sync")
	if err != nil {
		return nil, fmt.Errorf("start sync %q: %w", sessionID, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusAccepted:
		result.SessionID = sessionID
		return &result, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("start sync %q: %s: %w", sessionID, errText(apiErr, resp), driven.ErrCredentialInvalid)
	default:
		return nil, fmt.Errorf("start sync %q: %s", sessionID, errText(apiErr, resp))
	}
}

// QueueStats returns a snapshot of the remote sync queue.
func (c *Client) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	var stats model.QueueStats
	var apiErr errorBody

	resp, err := c.syncer.R().
		SetContext(ctx).
		SetResult(&stats).
		SetError(&apiErr).
		Get("/api/v1/sync/queue/stats")
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("queue stats: %s", errText(apiErr, resp))
	}

	return &stats, nil
}

// scrapedItemDTO is the scrape endpoint's wire shape.
type scrapedItemDTO struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	Character    string              `json:"character"`
	Origin       string              `json:"origin"`
	Version      string              `json:"version"`
	Scale        string              `json:"scale"`
	Category     string              `json:"category"`
	Manufacturer string              `json:"manufacturer"`
	ImageURL     string              `json:"image_url"`
	ReleaseDate  string              `json:"release_date"`
	Price        float64             `json:"price"`
	Currency     string              `json:"currency"`
	HeightMM     int                 `json:"height_mm"`
	Companies    []model.CompanyRole `json:"companies"`
	Artists      []model.PersonRole  `json:"artists"`
	Releases     []model.Release     `json:"releases"`
}

// ScrapeItem fetches structured data for one remote item page.
func (c *Client) ScrapeItem(ctx context.Context, remoteID int64) (*model.ScrapedItem, error) {
	var dto scrapedItemDTO
	var apiErr errorBody

	resp, err := c.api.R().
		SetContext(ctx).
		SetResult(&dto).
		SetError(&apiErr).
		Get(fmt.Sprintf("/api/v1/items/%d/scrape", remoteID))
	if err != nil {
		return nil, fmt.Errorf("scrape item %d: %w", remoteID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("scrape item %d: %s", remoteID, errText(apiErr, resp))
	}

	return &model.ScrapedItem{
		RemoteID:     dto.ID,
		Name:         dto.Name,
		Character:    dto.Character,
		Origin:       dto.Origin,
		Version:      dto.Version,
		Scale:        dto.Scale,
		Category:     dto.Category,
		Manufacturer: dto.Manufacturer,
		ImageURL:     dto.ImageURL,
		ReleaseDate:  dto.ReleaseDate,
		Price:        dto.Price,
		Currency:     dto.Currency,
		Companies:    dto.Companies,
		Artists:      dto.Artists,
		Releases:     dto.Releases,
		HeightMM:     dto.HeightMM,
	}, nil
}

// figureDTO is the collection endpoint's wire shape for one item.
type figureDTO struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	Character    string              `json:"character"`
	Origin       string              `json:"origin"`
	Version      string              `json:"version"`
	Scale        string              `json:"scale"`
	Category     string              `json:"category"`
	Manufacturer string              `json:"manufacturer"`
	Status       string              `json:"status"`
	Count        int                 `json:"count"`
	Notes        string              `json:"notes"`
	ImageURL     string              `json:"image_url"`
	ItemURL      string              `json:"item_url"`
	Companies    []model.CompanyRole `json:"companies"`
	Artists      []model.PersonRole  `json:"artists"`
	Releases     []model.Release     `json:"releases"`
	Dimensions   *model.Dimensions   `json:"dimensions"`
	Purchase     *model.PurchaseInfo `json:"purchase"`
	Merchant     *model.Merchant     `json:"merchant"`
	AddedAt      time.Time           `json:"added_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// FetchCollection returns the account's full collection from the remote.
func (c *Client) FetchCollection(ctx context.Context) ([]model.Figure, error) {
	var body struct {
		Items []figureDTO `json:"items"`
	}
	var apiErr errorBody

	resp, err := c.api.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&apiErr).
		Get("/api/v1/collection")
	if err != nil {
		return nil, fmt.Errorf("fetch collection: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch collection: %s", errText(apiErr, resp))
	}

	figs := make([]model.Figure, 0, len(body.Items))
	for _, dto := range body.Items {
		figs = append(figs, mapFigure(dto))
	}
	return figs, nil
}

// ParseCSV uploads a CSV export for parse-only validation.
func (c *Client) ParseCSV(ctx context.Context, csv io.Reader) (*model.CSVReport, error) {
	return c.uploadCSV(ctx, "/api/v1/sync/csv/parse", csv, nil)
}

// SyncCSV uploads a CSV export and queues its rows under the session id.
func (c *Client) SyncCSV(ctx context.Context, cred model.ParsedCredential, csv io.Reader, sessionID string) (*model.CSVReport, error) {
	fields := map[string]string{
		"credential": cred.CookieHeader(cookieOrder),
		"session_id": sessionID,
	}
	return c.uploadCSV(ctx, "/api/v1/sync/csv", csv, fields)
}

// uploadCSV is the shared multipart upload path for the two CSV variants.
func (c *Client) uploadCSV(ctx context.Context, path string, csv io.Reader, fields map[string]string) (*model.CSVReport, error) {
	var report model.CSVReport
	var apiErr errorBody

	req := c.syncer.R().
		SetContext(ctx).
		SetFileReader("file", "collection.csv", csv).
		SetResult(&report).
		SetError(&apiErr)
	if len(fields) > 0 {
		req.SetFormData(fields)
	}

	resp, err := req.Post(path)
	if err != nil {
		return nil, fmt.Errorf("upload csv to %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("upload csv to %s: %s", path, errText(apiErr, resp))
	}

	return &report, nil
}

// ListSessions returns paused or in-progress server-side sync sessions.
func (c *Client) ListSessions(ctx context.Context) ([]model.SyncSession, error) {
	var body struct {
		Sessions []model.SyncSession `json:"sessions"`
	}
	var apiErr errorBody

	resp, err := c.syncer.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&apiErr).
		Get("/api/v1/sync/sessions")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list sessions: %s", errText(apiErr, resp))
	}

	return body.Sessions, nil
}

// ResumeSession resumes a paused server-side session.
func (c *Client) ResumeSession(ctx context.Context, sessionID string) error {
	return c.postSessionAction(ctx, sessionID, "resume")
}

// CancelFailed discards the failed items of a session.
func (c *Client) CancelFailed(ctx context.Context, sessionID string) error {
	return c.postSessionAction(ctx, sessionID, "cancel-failed")
}

func (c *Client) postSessionAction(ctx context.Context, sessionID, action string) error {
	var apiErr errorBody

	resp, err := c.syncer.R().
		SetContext(ctx).
		SetError(&apiErr).
		Post(fmt.Sprintf("/api/v1/sync/sessions/%s/%s", sessionID, action))
	if err != nil {
		return fmt.Errorf("session %s %q: %w", action, sessionID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("session %s %q: %s", action, sessionID, errText(apiErr, resp))
	}
	return nil
}

// mapFigure converts a collection wire item to the domain model.
func mapFigure(dto figureDTO) model.Figure {
	status := model.CollectionStatus(dto.Status)
	switch status {
	case model.StatusOwned, model.StatusOrdered, model.StatusWished:
	default:
		status = model.StatusOwned
	}

	count := dto.Count
	if count == 0 {
		count = 1
	}

	return model.Figure{
		RemoteID:     dto.ID,
		Name:         dto.Name,
		Character:    dto.Character,
		Origin:       dto.Origin,
		Version:      dto.Version,
		Scale:        dto.Scale,
		Category:     dto.Category,
		Manufacturer: dto.Manufacturer,
		Status:       status,
		Count:        count,
		Notes:        dto.Notes,
		ImageURL:     dto.ImageURL,
		ItemURL:      dto.ItemURL,
		Companies:    dto.Companies,
		Artists:      dto.Artists,
		Releases:     dto.Releases,
		Dimensions:   dto.Dimensions,
		Purchase:     dto.Purchase,
		Merchant:     dto.Merchant,
		AddedAt:      dto.AddedAt,
		UpdatedAt:    dto.UpdatedAt,
	}
}

// errText prefers the remote's error envelope, falling back to the HTTP status.
func errText(apiErr errorBody, resp *resty.Response) string {
	if apiErr.Error != "" {
		return apiErr.Error
	}
	return fmt.Sprintf("unexpected status %d", resp.StatusCode())
}
