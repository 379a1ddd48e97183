// Package passwordless implements the session provider for Bandroom's
// magic-link auth service. The service issues a JWT access token plus a refresh
// token; the provider keeps the pair alive for the process lifetime, persists it
// across restarts via the local state store, and notifies subscribers whenever
// the session changes (refresh, sign-in, sign-out).
package passwordless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/bandroomhq/bandroom/internal/auth"
	"github.com/bandroomhq/bandroom/internal/config"
	"github.com/bandroomhq/bandroom/internal/db/models"
	"github.com/bandroomhq/bandroom/internal/localstate"
	"github.com/bandroomhq/bandroom/internal/safego"
)

// refreshLead is how long before access-token expiry the refresh fires
const refreshLead = time.Minute

// Provider implements the session provider against the remote auth service
type Provider struct {
	serviceURL     string
	apiKey         string
	redirectOrigin string
	httpClient     *http.Client
	state          localstate.Store
	oauth          *oauth2.Config

	mu          sync.RWMutex
	session     *auth.Session
	user        *models.User
	subscribers []func(*auth.Session)

	initOnce sync.Once
	initErr  error
}

// New creates a provider for the configured auth service. The state store is
// used to persist the session across gateway restarts.
func New(cfg *config.AuthConfig, state localstate.Store) *Provider {
	serviceURL := strings.TrimRight(cfg.ServiceURL, "/")
	return &Provider{
		serviceURL:     serviceURL,
		apiKey:         cfg.APIKey,
		redirectOrigin: cfg.RedirectOrigin,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		state:          state,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL: serviceURL + "/auth/v1/token",
			},
		},
	}
}

// Initialize restores any persisted session, fetches the current user, and
// starts the background refresh loop. It is idempotent per process lifetime:
// repeated calls return the first call's result without re-running.
func (p *Provider) Initialize(ctx context.Context) error {
	p.initOnce.Do(func() {
		p.initErr = p.initialize(ctx)
		// The refresh loop runs for the remainder of the process regardless of
		// whether a session was restored; sign-in later hands it a session.
		safego.Go(p.refreshLoop)
	})
	return p.initErr
}

func (p *Provider) initialize(ctx context.Context) error {
	raw, err := p.state.Get(ctx, localstate.KeySession)
	if err != nil {
		if err == localstate.ErrNotFound {
			slog.Info("no persisted session, starting signed out")
			return nil
		}
		return fmt.Errorf("failed to read persisted session: %w", err)
	}

	session := &auth.Session{}
	if err := json.Unmarshal([]byte(raw), session); err != nil {
		slog.Warn("persisted session is corrupt, discarding", "error", err)
		_ = p.state.Delete(ctx, localstate.KeySession)
		return nil
	}

	if session.Expired() && session.RefreshToken != "" {
		refreshed, err := p.refresh(ctx, session)
		if err != nil {
			slog.Warn("persisted session could not be refreshed, starting signed out", "error", err)
			_ = p.state.Delete(ctx, localstate.KeySession)
			return nil
		}
		session = refreshed
	}

	p.setSession(ctx, session)

	if _, err := p.GetCurrentUser(ctx); err != nil {
		slog.Warn("failed to fetch current user on startup", "error", err)
	}
	return nil
}

// RequestEmailSignIn asks the auth service to email a one-time sign-in link
// that redirects back to the app's own origin.
func (p *Provider) RequestEmailSignIn(ctx context.Context, email string) error {
	body := map[string]string{
		"email":       email,
		"redirect_to": p.redirectOrigin,
	}
	if err := p.do(ctx, http.MethodPost, "/auth/v1/magiclink", body, nil, false); err != nil {
		return &auth.RequestError{Op: "sign_in", Message: "could not request sign-in link", Err: err}
	}
	return nil
}

// SetSessionFromTokens installs the token pair the frontend received from the
// sign-in redirect, fetches the user it belongs to, and persists the session.
func (p *Provider) SetSessionFromTokens(ctx context.Context, accessToken, refreshToken string) error {
	expiry, err := auth.TokenExpiry(accessToken)
	if err != nil {
		return &auth.RequestError{Op: "set_session", Message: "invalid access token", Err: err}
	}

	session := &auth.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiry,
	}
	p.setSession(ctx, session)

	if _, err := p.GetCurrentUser(ctx); err != nil {
		return err
	}
	return nil
}

// SignOut revokes the session remotely, then clears local state. Local state
// is only cleared after the remote call succeeds, so a failed sign-out never
// leaves the UI signed out against a live remote session.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, true); err != nil {
		return &auth.RequestError{Op: "sign_out", Message: "could not sign out", Err: err}
	}

	p.setSession(ctx, nil)
	return nil
}

// UpdateUserMetadata merges attributes into the current user's metadata and
// returns the updated user.
func (p *Provider) UpdateUserMetadata(ctx context.Context, attrs map[string]string) (*models.User, error) {
	body := map[string]any{"data": attrs}
	user := &models.User{}
	if err := p.do(ctx, http.MethodPut, "/auth/v1/user", body, user, true); err != nil {
		return nil, &auth.RequestError{Op: "update_profile", Message: "could not update profile", Err: err}
	}

	p.mu.Lock()
	p.user = user
	if p.session != nil {
		p.session.User = user
	}
	p.mu.Unlock()

	return user, nil
}

// GetCurrentUser forces a fresh fetch of the current user from the auth
// service and overwrites local user state with the result.
func (p *Provider) GetCurrentUser(ctx context.Context) (*models.User, error) {
	user := &models.User{}
	if err := p.do(ctx, http.MethodGet, "/auth/v1/user", nil, user, true); err != nil {
		return nil, &auth.RequestError{Op: "get_user", Message: "could not fetch current user", Err: err}
	}

	p.mu.Lock()
	p.user = user
	if p.session != nil {
		p.session.User = user
	}
	p.mu.Unlock()

	return user, nil
}

// Session returns the current session, or nil when signed out
func (p *Provider) Session() *auth.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.session
}

// User returns the current user, or nil when signed out
func (p *Provider) User() *models.User {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.user
}

// CurrentUserID returns the current user's id, or "" when signed out
func (p *Provider) CurrentUserID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user != nil {
		return p.user.ID
	}
	if p.session != nil {
		if sub, err := auth.TokenSubject(p.session.AccessToken); err == nil {
			return sub
		}
	}
	return ""
}

// OnSessionChange registers fn to be called with the new session (nil on
// sign-out) whenever the session changes. Subscriptions last for the process
// lifetime; there is no unsubscribe.
func (p *Provider) OnSessionChange(fn func(*auth.Session)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// setSession replaces the session, persists (or deletes) it in the state
// store, and notifies subscribers.
func (p *Provider) setSession(ctx context.Context, session *auth.Session) {
	p.mu.Lock()
	p.session = session
	if session == nil {
		p.user = nil
	} else if session.User != nil {
		p.user = session.User
	}
	subs := make([]func(*auth.Session), len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	if session == nil {
		if err := p.state.Delete(ctx, localstate.KeySession); err != nil {
			slog.Warn("failed to clear persisted session", "error", err)
		}
	} else {
		data, err := json.Marshal(session)
		if err == nil {
			err = p.state.Set(ctx, localstate.KeySession, string(data))
		}
		if err != nil {
			slog.Warn("failed to persist session", "error", err)
		}
	}

	for _, fn := range subs {
		fn(session)
	}
}

// refresh exchanges the refresh token for a new token pair via the standard
// refresh-token grant against the auth service's token endpoint.
func (p *Provider) refresh(ctx context.Context, session *auth.Session) (*auth.Session, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	stale := &oauth2.Token{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		// Force the token source to refresh regardless of wall clock.
		Expiry: time.Now().Add(-time.Minute),
	}

	fresh, err := p.oauth.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh: %w", err)
	}

	expiry := fresh.Expiry
	if parsed, err := auth.TokenExpiry(fresh.AccessToken); err == nil && !parsed.IsZero() {
		expiry = parsed
	}

	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = session.RefreshToken
	}

	return &auth.Session{
		AccessToken:  fresh.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiry,
		User:         session.User,
	}, nil
}

// refreshLoop keeps the session alive for the process lifetime, refreshing
// shortly before each access-token expiry. Signed-out periods are polled
// cheaply until a session appears.
func (p *Provider) refreshLoop() {
	for {
		session := p.Session()
		if session == nil || session.RefreshToken == "" {
			time.Sleep(refreshLead)
			continue
		}

		wait := time.Until(session.ExpiresAt) - refreshLead
		if wait > 0 {
			time.Sleep(wait)
		}

		current := p.Session()
		if current == nil || current.AccessToken != session.AccessToken {
			// Signed out or replaced while we slept.
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		refreshed, err := p.refresh(ctx, current)
		cancel()
		if err != nil {
			slog.Warn("session refresh failed, retrying", "error", err)
			time.Sleep(refreshLead)
			continue
		}

		slog.Debug("session refreshed", "expires_at", refreshed.ExpiresAt)
		p.setSession(context.Background(), refreshed)
	}
}

// do performs one auth service request. A nil out skips response decoding;
// authed attaches the current access token as a bearer credential.
func (p *Provider) do(ctx context.Context, method, path string, body any, out any, authed bool) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.serviceURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	if authed {
		session := p.Session()
		if session == nil {
			return fmt.Errorf("no active session")
		}
		req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &auth.RequestError{
			Op:         method + " " + path,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
