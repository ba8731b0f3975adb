// Package auth owns the Google OAuth credential: it loads, refreshes or
// re-acquires it and hands out Sessions bound to the current token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/theakshaypant/today/internal/core"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// GoogleRevokeURL is the token revocation endpoint used on logout.
const GoogleRevokeURL = "https://oauth2.googleapis.com/revoke"

// Recorder receives recoverable failures.
type Recorder interface {
	Record(where string, err error)
}

// Session is an authenticated handle for calendar API calls. A new Session
// is created whenever the underlying credential changes.
type Session struct {
	Token  *oauth2.Token
	Client *http.Client
}

// LoadConfig parses a credentials.json client-secret descriptor.
func LoadConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return config, nil
}

// ConfigLoader produces the OAuth client configuration on first use.
type ConfigLoader func() (*oauth2.Config, error)

// FileConfig loads the client configuration from a credentials.json file.
func FileConfig(credentialsFile string) ConfigLoader {
	return func() (*oauth2.Config, error) { return LoadConfig(credentialsFile) }
}

// Authenticator holds at most one credential at a time.
type Authenticator struct {
	mu         sync.Mutex
	config     *oauth2.Config
	loadConfig ConfigLoader
	store   TokenStore
	consent Consent

	token   *oauth2.Token
	session *Session

	httpClient *http.Client
	revokeURL  string
	recorder   Recorder
	logger     *slog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithHTTPClient sets the client used for token and revoke requests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Authenticator) { a.httpClient = c }
}

// WithRevokeURL sets the revoke endpoint; "" skips revocation on logout.
func WithRevokeURL(u string) Option {
	return func(a *Authenticator) { a.revokeURL = u }
}

// WithRecorder sets where best-effort failures are recorded.
func WithRecorder(r Recorder) Option {
	return func(a *Authenticator) { a.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Authenticator) { a.logger = l }
}

func New(config *oauth2.Config, store TokenStore, consent Consent, opts ...Option) *Authenticator {
	a := NewDeferred(nil, store, consent, opts...)
	a.config = config
	return a
}

// NewDeferred is like New but loads the client configuration only when a
// refresh or consent needs it, so a still valid stored token works without
// one. A failed load is AuthUnrecoverable and is retried on the next call.
func NewDeferred(load ConfigLoader, store TokenStore, consent Consent, opts ...Option) *Authenticator {
	if consent == nil {
		consent = NoConsent{}
	}
	a := &Authenticator{
		loadConfig: load,
		store:      store,
		consent:    consent,
		httpClient: http.DefaultClient,
		revokeURL:  GoogleRevokeURL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// EnsureSession returns a session backed by a valid credential, refreshing
// or re-running consent as needed. Network problems are AuthTransient and
// should be retried at the next refresh; a missing credential that consent
// cannot replace is AuthUnrecoverable.
func (a *Authenticator) EnsureSession(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensureLocked(ctx)
}

// Logout forgets the credential and immediately authenticates again, so the
// caller ends up with a fresh session or an error explaining why not.
func (a *Authenticator) Logout(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tok := a.token
	if tok == nil {
		// Fresh process: revoke what is on disk
		tok, _ = a.store.Load()
	}
	if tok != nil {
		if err := a.revoke(ctx, tok); err != nil {
			a.record("revoke token", err)
		}
	}
	if err := a.store.Delete(); err != nil {
		return nil, core.Wrap(core.KindAuthUnrecoverable, "delete stored token", err)
	}
	a.token = nil
	a.session = nil
	a.logger.Info("logged out")

	return a.ensureLocked(ctx)
}

func (a *Authenticator) ensureLocked(ctx context.Context) (*Session, error) {
	if a.token == nil {
		tok, err := a.store.Load()
		if err != nil {
			// A corrupt token file is as good as none.
			a.record("load stored token", err)
			if derr := a.store.Delete(); derr != nil {
				a.record("delete stored token", derr)
			}
			tok = nil
		}
		a.token = tok
	}

	if a.token != nil && a.token.Valid() {
		return a.sessionLocked(ctx), nil
	}

	if a.token != nil && a.token.RefreshToken != "" {
		config, err := a.configLocked()
		if err != nil {
			return nil, err
		}
		tok, err := a.refresh(ctx, config, a.token)
		if err == nil {
			a.setTokenLocked(tok)
			return a.sessionLocked(ctx), nil
		}
		if !isRevoked(err) {
			return nil, core.Wrap(core.KindAuthTransient, "refresh token", err)
		}
		a.logger.Warn("stored token was revoked, starting consent", "err", err)
		if derr := a.store.Delete(); derr != nil {
			a.record("delete stored token", derr)
		}
	}
	a.token = nil
	a.session = nil

	config, err := a.configLocked()
	if err != nil {
		return nil, err
	}
	tok, err := a.consent.Run(a.oauthContext(ctx), config)
	if err != nil {
		if errors.Is(err, ErrConsentUnavailable) {
			return nil, core.Wrap(core.KindAuthUnrecoverable, "no usable token", err)
		}
		return nil, core.Wrap(core.KindAuthTransient, "interactive consent", err)
	}
	a.setTokenLocked(tok)
	a.logger.Info("authorization complete")
	return a.sessionLocked(ctx), nil
}

func (a *Authenticator) refresh(ctx context.Context, config *oauth2.Config, tok *oauth2.Token) (*oauth2.Token, error) {
	expired := &oauth2.Token{RefreshToken: tok.RefreshToken}
	return config.TokenSource(a.oauthContext(ctx), expired).Token()
}

func (a *Authenticator) configLocked() (*oauth2.Config, error) {
	if a.config != nil {
		return a.config, nil
	}
	if a.loadConfig == nil {
		return nil, core.Wrap(core.KindAuthUnrecoverable, "load credentials", errors.New("no OAuth client configured"))
	}
	config, err := a.loadConfig()
	if err != nil {
		return nil, core.Wrap(core.KindAuthUnrecoverable, "load credentials", err)
	}
	a.config = config
	return config, nil
}

func (a *Authenticator) setTokenLocked(tok *oauth2.Token) {
	a.token = tok
	a.session = nil
	if err := a.store.Save(tok); err != nil {
		a.record("save token", err)
	}
}

func (a *Authenticator) sessionLocked(ctx context.Context) *Session {
	if a.session != nil && a.session.Token == a.token {
		return a.session
	}
	// The client outlives the call that created it.
	base := context.WithoutCancel(a.oauthContext(ctx))
	// Without a client configuration the token is used until it expires.
	var upstream oauth2.TokenSource = oauth2.StaticTokenSource(a.token)
	if config, err := a.configLocked(); err == nil {
		upstream = config.TokenSource(base, a.token)
	}
	src := &persistingSource{
		base:  upstream,
		last:  a.token.AccessToken,
		store: a.storeRefreshed,
	}
	a.session = &Session{
		Token:  a.token,
		Client: oauth2.NewClient(base, oauth2.ReuseTokenSource(a.token, src)),
	}
	return a.session
}

// storeRefreshed persists a token refreshed transparently by a session
// client; the next EnsureSession hands out a new Session for it.
func (a *Authenticator) storeRefreshed(tok *oauth2.Token) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setTokenLocked(tok)
}

func (a *Authenticator) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func (a *Authenticator) revoke(ctx context.Context, tok *oauth2.Token) error {
	if a.revokeURL == "" {
		return nil
	}
	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}
	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke: unexpected status %s", resp.Status)
	}
	return nil
}

func (a *Authenticator) record(where string, err error) {
	if a.recorder != nil {
		a.recorder.Record(where, err)
		return
	}
	a.logger.Warn(where, "err", err)
}

// isRevoked reports whether the token endpoint rejected the refresh token
// itself, as opposed to failing to answer.
func isRevoked(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return false
	}
	return re.Response.StatusCode >= 400 && re.Response.StatusCode < 500
}

// persistingSource saves tokens refreshed behind a session's back.
type persistingSource struct {
	base  oauth2.TokenSource
	mu    sync.Mutex
	last  string
	store func(*oauth2.Token)
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	changed := tok.AccessToken != p.last
	p.last = tok.AccessToken
	p.mu.Unlock()
	if changed {
		p.store(tok)
	}
	return tok, nil
}
