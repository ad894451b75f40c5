package remote_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"figpanel/internal/adapter/driven/remote"
	"figpanel/internal/domain/model"
	"figpanel/internal/domain/port/driven"
)

func testCredential() model.ParsedCredential {
	return model.ParsedCredential{Cookies: map[string]string{
		"session_id": "abc",
		"user_id":    "42",
	}}
}

func newTestClient(srv *httptest.Server, tokens remote.TokenSource) *remote.Client {
	return remote.NewClient(remote.Config{
		APIBaseURL:  srv.URL,
		SyncBaseURL: srv.URL,
		Tokens:      tokens,
		HTTPClient:  srv.Client(),
	})
}

func TestValidateCredential_Valid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/credential/validate", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "session_id=abc; user_id=42", body["credential"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"valid":true,"username":"collector99"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, remote.NewStaticTokenSource("test-token"))

	result, err := client.ValidateCredential(context.Background(), testCredential())
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "collector99", result.Username)
}

func TestValidateCredential_RejectedCookieIsResultNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"expired"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, remote.NewStaticTokenSource("test-token"))

	result, err := client.ValidateCredential(context.Background(), testCredential())
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, "expired", result.Error)
}

func TestStartSync_ReturnsCountsAndWarnings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sync", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "run-1", body["session_id"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"parsed": 120, "queued": 110, "skipped": 10,
			"categories": {"Prepainted": {"queued": 90, "skipped": 5}},
			"warnings": ["item 55: no release date"]
		}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, remote.NewStaticTokenSource("test-token"))

	result, err := client.StartSync(context.Background(), testCredential(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", result.SessionID)
	assert.Equal(t, 120, result.Parsed)
	assert.Equal(t, 110, result.Queued)
	assert.Equal(t, model.CategoryStats{Queued: 90, Skipped: 5}, result.Categories["Prepainted"])
	assert.Equal(t, []string{"item 55: no release date"}, result.Warnings)
}

func TestStartSync_RejectedCredentialIsTypedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"session cookie expired"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, remote.NewStaticTokenSource("test-token"))

	_, err := client.StartSync(context.Background(), testCredential(), "run-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrCredentialInvalid)
	assert.Contains(t, err.Error(), "session cookie expired")
}

func TestQueueStats_Decodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sync/queue/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"depths": {"high": 2, "default": 40},
			"pending": 42, "processing": 3, "completed": 60, "failed": 1, "skipped": 4,
			"rate_limited": true, "retry_after_seconds": 12
		}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, remote.NewStaticTokenSource("test-token"))

	stats, err := client.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, stats.Pending)
	assert.Equal(t, 40, stats.Depths["default"])
	assert.True(t, stats.RateLimited)
	assert.Equal(t, 110, stats.Total())
}

func TestUnauthorized_RefreshesOnceAndRetries(t *testing.T) {
	var statsCalls, refreshes atomic.Int32

	// The first refresh hands out a token the stats endpoint rejects, so the
	// first stats attempt 401s, triggering refresh-then-retry.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			token := "fresh-token"
			if refreshes.Add(1) == 1 {
				token = "stale-token"
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"` + token + `"}`))
		case "/api/v1/sync/queue/stats":
			statsCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer fresh-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"pending":1}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	tokens := remote.NewRefreshingTokenSource(srv.URL+"/auth/refresh", "long-lived")
	client := newTestClient(srv, tokens)

	stats, err := client.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, int32(2), statsCalls.Load(), "expected exactly one retry after the refresh")
	assert.Equal(t, int32(2), refreshes.Load())
}

func TestRefreshingTokenSource_SingleFlight(t *testing.T) {
	var refreshes atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	}))
	defer srv.Close()

	tokens := remote.NewRefreshingTokenSource(srv.URL, "long-lived")

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := tokens.Refresh(context.Background())
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	// All eight callers were in flight together; singleflight collapses them
	// into very few round trips (typically one).
	assert.LessOrEqual(t, refreshes.Load(), int32(2))
}

func TestListSessionsAndActions(t *testing.T) {
	var resumed, cancelled atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/sync/sessions" && r.Method == http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"sessions":[{"session_id":"s1","state":"paused","pending":5}]}`))
		case strings.HasSuffix(r.URL.Path, "/resume"):
			resumed.Store(true)
		case strings.HasSuffix(r.URL.Path, "/cancel-failed"):
			cancelled.Store(true)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := newTestClient(srv, remote.NewStaticTokenSource("test-token"))
	ctx := context.Background()

	sessions, err := client.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].SessionID)
	assert.Equal(t, "paused", sessions[0].State)

	require.NoError(t, client.ResumeSession(ctx, "s1"))
	assert.True(t, resumed.Load())

	require.NoError(t, client.CancelFailed(ctx, "s1"))
	assert.True(t, cancelled.Load())
}

func TestScrapeItem_MapsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/items/287510/scrape", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 287510, "name": "Racing Miku 2024",
			"manufacturer": "Good Smile Company", "scale": "1/7",
			"release_date": "2024-06-15", "price": 15800, "currency": "JPY",
			"companies": [{"name":"Good Smile Company","role":"Manufacturer"}]
		}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, remote.NewStaticTokenSource("test-token"))

	item, err := client.ScrapeItem(context.Background(), 287510)
	require.NoError(t, err)
	assert.Equal(t, int64(287510), item.RemoteID)
	assert.Equal(t, "Racing Miku 2024", item.Name)
	assert.Equal(t, "JPY", item.Currency)
	require.Len(t, item.Companies, 1)
	assert.Equal(t, model.RoleManufacturer, item.Companies[0].Role)
}
