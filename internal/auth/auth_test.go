package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theakshaypant/today/internal/core"
	"golang.org/x/oauth2"
)

type memStore struct {
	tok     *oauth2.Token
	loadErr error
	saves   int
	deletes int
}

func (m *memStore) Load() (*oauth2.Token, error) { return m.tok, m.loadErr }
func (m *memStore) Save(t *oauth2.Token) error   { m.tok = t; m.saves++; return nil }
func (m *memStore) Delete() error {
	m.tok = nil
	m.loadErr = nil
	m.deletes++
	return nil
}

type stubConsent struct {
	tok   *oauth2.Token
	err   error
	calls int
}

func (s *stubConsent) Run(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	s.calls++
	return s.tok, s.err
}

// tokenServer answers refresh requests with the given status.
type tokenServer struct {
	*httptest.Server
	status  int
	refresh atomic.Int32
	revokes atomic.Int32
}

func newTokenServer(t *testing.T, status int) *tokenServer {
	ts := &tokenServer{status: status}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		ts.refresh.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(ts.status)
		if ts.status == http.StatusOK {
			fmt.Fprint(w, `{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`)
			return
		}
		fmt.Fprint(w, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
	})
	mux.HandleFunc("/revoke", func(w http.ResponseWriter, r *http.Request) {
		ts.revokes.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	ts.Server = httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   ts.URL + "/auth",
			TokenURL:  ts.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func validToken(access string) *oauth2.Token {
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}
}

func expiredToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "old", TokenType: "Bearer", RefreshToken: "r", Expiry: time.Now().Add(-time.Hour)}
}

func TestEnsureSession_ValidStoredToken(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	store := &memStore{tok: validToken("stored")}
	consent := &stubConsent{}
	a := New(ts.config(), store, consent)

	s, err := a.EnsureSession(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "stored", s.Token.AccessToken)
	assert.NotNil(t, s.Client)
	assert.Zero(t, ts.refresh.Load())
	assert.Zero(t, consent.calls)

	again, err := a.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Same(t, s, again, "same credential reuses the session")
}

func TestEnsureSession_RefreshesExpiredToken(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	store := &memStore{tok: expiredToken()}
	a := New(ts.config(), store, &stubConsent{})

	s, err := a.EnsureSession(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "refreshed", s.Token.AccessToken)
	assert.Equal(t, "r", s.Token.RefreshToken, "refresh token carried over")
	assert.Equal(t, int32(1), ts.refresh.Load())
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, "refreshed", store.tok.AccessToken)
}

func TestEnsureSession_RevokedTokenFallsBackToConsent(t *testing.T) {
	ts := newTokenServer(t, http.StatusBadRequest)
	store := &memStore{tok: expiredToken()}
	consent := &stubConsent{tok: validToken("consented")}
	a := New(ts.config(), store, consent)

	s, err := a.EnsureSession(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "consented", s.Token.AccessToken)
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, 1, consent.calls)
	assert.Equal(t, "consented", store.tok.AccessToken)
}

func TestEnsureSession_RefreshServerErrorIsTransient(t *testing.T) {
	ts := newTokenServer(t, http.StatusInternalServerError)
	store := &memStore{tok: expiredToken()}
	consent := &stubConsent{}
	a := New(ts.config(), store, consent)

	_, err := a.EnsureSession(context.Background())

	require.ErrorIs(t, err, core.ErrAuthTransient)
	assert.Zero(t, consent.calls)
	assert.Zero(t, store.deletes, "token kept for the next attempt")
}

func TestEnsureSession_UnreachableTokenEndpointIsTransient(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	cfg := ts.config()
	ts.Close()
	a := New(cfg, &memStore{tok: expiredToken()}, &stubConsent{})

	_, err := a.EnsureSession(context.Background())

	assert.ErrorIs(t, err, core.ErrAuthTransient)
}

func TestEnsureSession_NoTokenNoConsentIsUnrecoverable(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	a := New(ts.config(), &memStore{}, nil)

	_, err := a.EnsureSession(context.Background())

	require.ErrorIs(t, err, core.ErrAuthUnrecoverable)
	assert.ErrorIs(t, err, ErrConsentUnavailable)
}

func TestEnsureSession_ConsentFailureIsTransient(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	a := New(ts.config(), &memStore{}, &stubConsent{err: errors.New("timeout waiting for authorization")})

	_, err := a.EnsureSession(context.Background())

	assert.ErrorIs(t, err, core.ErrAuthTransient)
}

func TestEnsureSession_CorruptStoreRunsConsent(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	store := &memStore{loadErr: errors.New("decode token file: unexpected EOF")}
	consent := &stubConsent{tok: validToken("fresh")}
	a := New(ts.config(), store, consent)

	s, err := a.EnsureSession(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "fresh", s.Token.AccessToken)
	assert.Equal(t, 1, store.deletes)
}

type countingLoader struct {
	config *oauth2.Config
	err    error
	calls  int
}

func (l *countingLoader) load() (*oauth2.Config, error) {
	l.calls++
	return l.config, l.err
}

func TestNewDeferred_ValidTokenNeedsNoCredentials(t *testing.T) {
	loader := &countingLoader{err: errors.New("read credentials file: no such file")}
	consent := &stubConsent{}
	a := NewDeferred(loader.load, &memStore{tok: validToken("stored")}, consent)

	s, err := a.EnsureSession(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "stored", s.Token.AccessToken)
	assert.NotNil(t, s.Client)
	assert.Zero(t, consent.calls)
}

func TestNewDeferred_MissingCredentialsIsUnrecoverable(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "credentials.json")

	tests := []struct {
		name string
		tok  *oauth2.Token
	}{
		{"no token", nil},
		{"expired token", expiredToken()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{tok: tt.tok}
			consent := &stubConsent{tok: validToken("fresh")}
			a := NewDeferred(FileConfig(missing), store, consent)

			_, err := a.EnsureSession(context.Background())

			require.ErrorIs(t, err, core.ErrAuthUnrecoverable)
			assert.ErrorIs(t, err, fs.ErrNotExist)
			assert.Zero(t, consent.calls)
			assert.Zero(t, store.deletes)
		})
	}
}

func TestNewDeferred_RetriesFailedLoad(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	loader := &countingLoader{err: errors.New("not yet")}
	a := NewDeferred(loader.load, &memStore{tok: expiredToken()}, nil)

	_, err := a.EnsureSession(context.Background())
	require.ErrorIs(t, err, core.ErrAuthUnrecoverable)

	loader.config, loader.err = ts.config(), nil
	s, err := a.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed", s.Token.AccessToken)

	_, err = a.EnsureSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestLogout_DeletesRevokesAndReauthenticates(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	store := &memStore{tok: validToken("before")}
	consent := &stubConsent{tok: validToken("after")}
	a := New(ts.config(), store, consent, WithRevokeURL(ts.URL+"/revoke"))

	_, err := a.EnsureSession(context.Background())
	require.NoError(t, err)

	s, err := a.Logout(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "after", s.Token.AccessToken)
	assert.Equal(t, int32(1), ts.revokes.Load())
	assert.Equal(t, 1, store.deletes)
	assert.Equal(t, 1, consent.calls)
}

func TestLogout_RevokesStoredTokenInFreshProcess(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	store := &memStore{tok: validToken("on-disk")}
	consent := &stubConsent{tok: validToken("after")}
	a := New(ts.config(), store, consent, WithRevokeURL(ts.URL+"/revoke"))

	_, err := a.Logout(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(1), ts.revokes.Load())
}

func TestLogout_WithoutConsentSurfacesUnrecoverable(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK)
	store := &memStore{tok: validToken("before")}
	a := New(ts.config(), store, NoConsent{}, WithRevokeURL(""))

	_, err := a.Logout(context.Background())

	require.ErrorIs(t, err, core.ErrAuthUnrecoverable)
	assert.Nil(t, store.tok)
}

func TestFileTokenStore_RoundTripAndDelete(t *testing.T) {
	store := NewFileTokenStore(filepath.Join(t.TempDir(), "nested", "token.json"))

	tok, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, tok, "missing file is not an error")

	require.NoError(t, store.Save(validToken("abc")))
	tok, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)

	require.NoError(t, store.Delete())
	require.NoError(t, store.Delete(), "second delete is a no-op")
	tok, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestIsRevoked(t *testing.T) {
	assert.False(t, isRevoked(errors.New("dial tcp")))
	assert.True(t, isRevoked(&oauth2.RetrieveError{Response: &http.Response{StatusCode: 400}}))
	assert.True(t, isRevoked(fmt.Errorf("wrapped: %w", &oauth2.RetrieveError{Response: &http.Response{StatusCode: 401}})))
	assert.False(t, isRevoked(&oauth2.RetrieveError{Response: &http.Response{StatusCode: 503}}))
}
