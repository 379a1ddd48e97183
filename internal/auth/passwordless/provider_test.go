package passwordless

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bandroomhq/bandroom/internal/auth"
	"github.com/bandroomhq/bandroom/internal/config"
	"github.com/bandroomhq/bandroom/internal/localstate"
)

func testToken(t *testing.T, subject string, expiry time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func newTestProvider(t *testing.T, serviceURL string) (*Provider, localstate.Store) {
	t.Helper()
	state, err := localstate.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	cfg := &config.AuthConfig{
		ServiceURL:     serviceURL,
		APIKey:         "test-api-key",
		RedirectOrigin: "http://localhost:5173",
	}
	return New(cfg, state), state
}

func TestRequestEmailSignIn(t *testing.T) {
	var gotBody map[string]string
	var gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/v1/magiclink", r.URL.Path)
		gotAPIKey = r.Header.Get("apikey")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, _ := newTestProvider(t, server.URL)

	err := provider.RequestEmailSignIn(context.Background(), "alice@example.com")
	require.NoError(t, err)

	assert.Equal(t, "test-api-key", gotAPIKey)
	assert.Equal(t, "alice@example.com", gotBody["email"])
	assert.Equal(t, "http://localhost:5173", gotBody["redirect_to"])
}

func TestRequestEmailSignInServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	provider, _ := newTestProvider(t, server.URL)

	err := provider.RequestEmailSignIn(context.Background(), "alice@example.com")
	require.Error(t, err)

	reqErr, ok := auth.IsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, "sign_in", reqErr.Op)
}

func TestSetSessionFromTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "user-1",
			"email": "alice@example.com",
		})
	}))
	defer server.Close()

	provider, state := newTestProvider(t, server.URL)

	var notified *auth.Session
	provider.OnSessionChange(func(s *auth.Session) { notified = s })

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	access := testToken(t, "user-1", expiry)

	err := provider.SetSessionFromTokens(context.Background(), access, "refresh-1")
	require.NoError(t, err)

	session := provider.Session()
	require.NotNil(t, session)
	assert.Equal(t, access, session.AccessToken)
	assert.Equal(t, "refresh-1", session.RefreshToken)
	assert.True(t, session.ExpiresAt.Equal(expiry))

	user := provider.User()
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "user-1", provider.CurrentUserID())

	require.NotNil(t, notified)
	assert.Equal(t, access, notified.AccessToken)

	persisted, err := state.Get(context.Background(), localstate.KeySession)
	require.NoError(t, err)
	assert.Contains(t, persisted, "refresh-1")
}

func TestSetSessionFromTokensInvalidToken(t *testing.T) {
	provider, _ := newTestProvider(t, "http://localhost:1")

	err := provider.SetSessionFromTokens(context.Background(), "garbage", "refresh-1")
	require.Error(t, err)

	reqErr, ok := auth.IsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, "set_session", reqErr.Op)
}

func TestSignOut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/user":
			json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": "alice@example.com"})
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	provider, state := newTestProvider(t, server.URL)

	access := testToken(t, "user-1", time.Now().Add(time.Hour))
	require.NoError(t, provider.SetSessionFromTokens(context.Background(), access, "refresh-1"))

	require.NoError(t, provider.SignOut(context.Background()))

	assert.Nil(t, provider.Session())
	assert.Nil(t, provider.User())
	assert.Equal(t, "", provider.CurrentUserID())

	_, err := state.Get(context.Background(), localstate.KeySession)
	assert.ErrorIs(t, err, localstate.ErrNotFound)
}

func TestSignOutRemoteFailureKeepsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/user":
			json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": "alice@example.com"})
		case "/auth/v1/logout":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	provider, state := newTestProvider(t, server.URL)

	access := testToken(t, "user-1", time.Now().Add(time.Hour))
	require.NoError(t, provider.SetSessionFromTokens(context.Background(), access, "refresh-1"))

	err := provider.SignOut(context.Background())
	require.Error(t, err)

	// The session survives a failed remote sign-out.
	assert.NotNil(t, provider.Session())
	_, err = state.Get(context.Background(), localstate.KeySession)
	assert.NoError(t, err)
}

func TestUpdateUserMetadata(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/user" && r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": "alice@example.com"})
		case r.URL.Path == "/auth/v1/user" && r.Method == http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]any{
				"id":    "user-1",
				"email": "alice@example.com",
				"user_metadata": map[string]string{
					"display_name": "Alice",
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	provider, _ := newTestProvider(t, server.URL)

	access := testToken(t, "user-1", time.Now().Add(time.Hour))
	require.NoError(t, provider.SetSessionFromTokens(context.Background(), access, "refresh-1"))

	user, err := provider.UpdateUserMetadata(context.Background(), map[string]string{"display_name": "Alice"})
	require.NoError(t, err)

	data, ok := gotBody["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", data["display_name"])
	assert.Equal(t, "Alice", user.Metadata["display_name"])
	assert.Equal(t, "Alice", provider.User().Metadata["display_name"])
}

func TestGetCurrentUserWithoutSession(t *testing.T) {
	provider, _ := newTestProvider(t, "http://localhost:1")

	_, err := provider.GetCurrentUser(context.Background())
	require.Error(t, err)
}

func TestInitializeRestoresPersistedSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/v1/user", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"id": "user-1", "email": "alice@example.com"})
	}))
	defer server.Close()

	provider, state := newTestProvider(t, server.URL)

	access := testToken(t, "user-1", time.Now().Add(time.Hour))
	persisted, err := json.Marshal(&auth.Session{
		AccessToken:  access,
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, state.Set(context.Background(), localstate.KeySession, string(persisted)))

	require.NoError(t, provider.Initialize(context.Background()))

	session := provider.Session()
	require.NotNil(t, session)
	assert.Equal(t, access, session.AccessToken)

	user := provider.User()
	require.NotNil(t, user)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestInitializeStartsSignedOut(t *testing.T) {
	provider, _ := newTestProvider(t, "http://localhost:1")

	require.NoError(t, provider.Initialize(context.Background()))
	assert.Nil(t, provider.Session())
}

func TestInitializeDiscardsCorruptSession(t *testing.T) {
	provider, state := newTestProvider(t, "http://localhost:1")

	require.NoError(t, state.Set(context.Background(), localstate.KeySession, "{not json"))
	require.NoError(t, provider.Initialize(context.Background()))

	assert.Nil(t, provider.Session())
	_, err := state.Get(context.Background(), localstate.KeySession)
	assert.ErrorIs(t, err, localstate.ErrNotFound)
}
