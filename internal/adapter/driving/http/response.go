package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"figpanel/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CredentialStatusResponse reports which tier holds the session credential.
// The credential value itself is never returned.
type CredentialStatusResponse struct {
	HasValue bool   `json:"has_value"`
	Tier     string `json:"tier,omitempty"`
}

// PutCredentialRequest is the JSON body for storing a session credential.
type PutCredentialRequest struct {
	Value string `json:"value"`
	Tier  string `json:"tier"`
}

// AutofillInputRequest is the JSON body for feeding reference-field input.
type AutofillInputRequest struct {
	Value string `json:"value"`
}

// ReleaseResponse is the JSON representation of one release event.
type ReleaseResponse struct {
	Date        string  `json:"date"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	IsRerelease bool    `json:"isRerelease"`
	Barcode     string  `json:"barcode,omitempty"`
}

// FigureResponse is the JSON representation of one cached figure.
type FigureResponse struct {
	RemoteID     int64               `json:"remote_id"`
	Name         string              `json:"name"`
	Character    string              `json:"character"`
	Origin       string              `json:"origin"`
	Version      string              `json:"version,omitempty"`
	Scale        string              `json:"scale,omitempty"`
	Category     string              `json:"category,omitempty"`
	Manufacturer string              `json:"manufacturer,omitempty"`
	Status       string              `json:"status"`
	Count        int                 `json:"count"`
	Notes        string              `json:"notes,omitempty"`
	NotesHTML    string              `json:"notes_html,omitempty"`
	ImageURL     string              `json:"image_url,omitempty"`
	ItemURL      string              `json:"item_url,omitempty"`
	Companies    []model.CompanyRole `json:"companies"`
	Artists      []model.PersonRole  `json:"artists"`
	Releases     []ReleaseResponse   `json:"releases"`
	AddedAt      string              `json:"added_at"`
	UpdatedAt    string              `json:"updated_at"`
}

// SyncRunResponse is the JSON representation of one recorded sync run.
type SyncRunResponse struct {
	SessionID   string   `json:"session_id"`
	Status      string   `json:"status"`
	Parsed      int      `json:"parsed"`
	Queued      int      `json:"queued"`
	Skipped     int      `json:"skipped"`
	Warnings    []string `json:"warnings"`
	Error       string   `json:"error,omitempty"`
	StartedAt   string   `json:"started_at"`
	CompletedAt string   `json:"completed_at"`
}

// RefreshResponse reports the outcome of a collection refresh.
type RefreshResponse struct {
	Figures int `json:"figures"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toFigureResponse converts a domain Figure to its JSON response representation.
// Notes are rendered to sanitized HTML for display.
func toFigureResponse(fig model.Figure) FigureResponse {
	companies := fig.Companies
	if companies == nil {
		companies = []model.CompanyRole{}
	}
	artists := fig.Artists
	if artists == nil {
		artists = []model.PersonRole{}
	}

	releases := make([]ReleaseResponse, 0, len(fig.Releases))
	for _, rel := range fig.Releases {
		releases = append(releases, ReleaseResponse{
			Date:        rel.Date,
			Price:       rel.Price,
			Currency:    rel.Currency,
			IsRerelease: rel.IsRerelease,
			Barcode:     rel.Barcode,
		})
	}

	return FigureResponse{
		RemoteID:     fig.RemoteID,
		Name:         fig.Name,
		Character:    fig.Character,
		Origin:       fig.Origin,
		Version:      fig.Version,
		Scale:        fig.Scale,
		Category:     fig.Category,
		Manufacturer: fig.Manufacturer,
		Status:       string(fig.Status),
		Count:        fig.Count,
		Notes:        fig.Notes,
		NotesHTML:    RenderMarkdown(fig.Notes),
		ImageURL:     fig.ImageURL,
		ItemURL:      fig.ItemURL,
		Companies:    companies,
		Artists:      artists,
		Releases:     releases,
		AddedAt:      fig.AddedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    fig.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toSyncRunResponse converts a domain SyncRun to its JSON representation.
func toSyncRunResponse(run model.SyncRun) SyncRunResponse {
	warnings := run.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	return SyncRunResponse{
		SessionID:   run.SessionID,
		Status:      string(run.Status),
		Parsed:      run.Parsed,
		Queued:      run.Queued,
		Skipped:     run.Skipped,
		Warnings:    warnings,
		Error:       run.Error,
		StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt: run.CompletedAt.UTC().Format(time.RFC3339),
	}
}
