package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

// TokenSource supplies the bearer token the remote API expects. Refresh
// exchanges the long-lived refresh token for a new access token; concurrent
// refreshes collapse into one call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token and never refreshes it. Used when
// the deployment hands figpanel a non-expiring API key.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a TokenSource around a fixed token.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// Token returns the fixed token.
func (s *StaticTokenSource) Token(context.Context) (string, error) {
	return s.token, nil
}

// Refresh is a no-op for a static token; retrying with the same token lets
// the caller surface the original 401 instead of looping.
func (s *StaticTokenSource) Refresh(context.Context) (string, error) {
	return s.token, nil
}

// RefreshingTokenSource caches an access token and refreshes it against the
// auth endpoint on demand. A singleflight group deduplicates concurrent 401
// handling so racing callers share one refresh round trip.
type RefreshingTokenSource struct {
	mu           sync.RWMutex
	accessToken  string
	refreshURL   string
	refreshToken string
	http         *resty.Client
	group        singleflight.Group
}

// NewRefreshingTokenSource creates a TokenSource that POSTs refreshToken to
// refreshURL whenever a new access token is needed.
func NewRefreshingTokenSource(refreshURL, refreshToken string) *RefreshingTokenSource {
	return &RefreshingTokenSource{
		refreshURL:   refreshURL,
		refreshToken: refreshToken,
		http:         resty.New().SetTimeout(10 * time.Second),
	}
}

// Token returns the cached access token, refreshing first if none is held yet.
func (s *RefreshingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	token := s.accessToken
	s.mu.RUnlock()

	if token != "" {
		return token, nil
	}
	return s.Refresh(ctx)
}

// Refresh fetches a new access token. Concurrent callers are coalesced; all
// of them receive the same token or the same error.
func (s *RefreshingTokenSource) Refresh(ctx context.Context) (string, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		var body struct {
			AccessToken string `json:"access_token"`
		}

		resp, err := s.http.R().
			SetContext(ctx).
			SetBody(map[string]string{"refresh_token": s.refreshToken}).
			SetResult(&body).
			Post(s.refreshURL)
		if err != nil {
			return "", fmt.Errorf("token refresh: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return "", fmt.Errorf("token refresh: unexpected status %d", resp.StatusCode())
		}
		if body.AccessToken == "" {
			return "", fmt.Errorf("token refresh: empty access token in response")
		}

		s.mu.Lock()
		s.accessToken = body.AccessToken
		s.mu.Unlock()

		return body.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
