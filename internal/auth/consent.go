package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"golang.org/x/oauth2"
)

// ErrConsentUnavailable means no interactive flow can run in this process.
var ErrConsentUnavailable = errors.New("interactive consent unavailable")

// Consent obtains a brand-new token from the user.
type Consent interface {
	Run(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error)
}

// NoConsent always fails with ErrConsentUnavailable, for headless runs.
type NoConsent struct{}

func (NoConsent) Run(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	return nil, ErrConsentUnavailable
}

// LocalServerConsent runs the installed-app flow: it listens on a loopback
// port for the OAuth callback and opens the browser at the consent page.
type LocalServerConsent struct {
	// Port to listen on; 0 picks a free one.
	Port    int
	Out     io.Writer
	Timeout time.Duration
	// Browser opens url; nil uses the platform opener.
	Browser func(url string) error
}

func (c *LocalServerConsent) Run(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", c.Port))
	if err != nil {
		// Fall back to a random port if the configured one is taken
		listener, err = net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("start callback server: %w", err)
		}
	}
	port := listener.Addr().(*net.TCPAddr).Port

	cfg := *config
	cfg.RedirectURL = fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	state, err := randomState()
	if err != nil {
		listener.Close()
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			sendErr(errChan, errors.New("authorization failed: state mismatch"))
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "Authorization failed: "+q.Get("error"), http.StatusBadRequest)
			sendErr(errChan, fmt.Errorf("authorization failed: %s", q.Get("error")))
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html><html><head><title>today</title></head>
<body><h1>Authorization successful</h1><p>You can close this window and return to the terminal.</p></body></html>`)
		select {
		case codeChan <- code:
		default:
		}
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sendErr(errChan, err)
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.S256ChallengeOption(verifier),
	)

	out := c.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintln(out, "🔐 Opening browser for Google authorization...")
	browser := c.Browser
	if browser == nil {
		browser = OpenBrowser
	}
	if err := browser(authURL); err != nil {
		fmt.Fprintln(out, "⚠️  Couldn't open browser automatically.")
		fmt.Fprintln(out, "   Please open this URL manually:")
		fmt.Fprintln(out, authURL)
	}
	fmt.Fprintln(out, "⏳ Waiting for authorization...")

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	var code string
	select {
	case code = <-codeChan:
	case err := <-errChan:
		return nil, err
	case <-time.After(timeout):
		return nil, errors.New("timeout waiting for authorization")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// OpenBrowser opens url with the platform's default handler.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform")
	}
	return cmd.Start()
}
