package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/viper"
	"github.com/theakshaypant/today/internal/adapter/google"
	"github.com/theakshaypant/today/internal/auth"
	"github.com/theakshaypant/today/internal/calsync"
	"github.com/theakshaypant/today/internal/errsink"
	"golang.org/x/oauth2"

	"k8s.io/utils/clock"
)

var errNoBrowser = errors.New("browser disabled")

// environment holds what every command shares once flags and config are read.
type environment struct {
	dir     string
	logger  *slog.Logger
	logOut  io.Writer
	logFile io.Closer
	sink    *errsink.Sink
}

// consent builds the browser sign-in flow. Instructions go to out; with
// no_browser set the URL is only printed there.
func (e *environment) consent(out io.Writer) *auth.LocalServerConsent {
	local := &auth.LocalServerConsent{
		Port: viper.GetInt("callback_port"),
		Out:  out,
	}
	if viper.GetBool("no_browser") {
		local.Browser = func(string) error { return errNoBrowser }
	}
	return local
}

// authenticator builds the Authenticator. credentials.json is read only when
// a refresh or sign-in needs it; pass auth.NoConsent{} to report a missing
// or revoked credential instead of signing in.
func (e *environment) authenticator(consent auth.Consent) *auth.Authenticator {
	credsFile := dataPath("credentials_file")
	load := func() (*oauth2.Config, error) {
		config, err := auth.LoadConfig(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%w\n\nDownload an OAuth client (Desktop app) from the Google Cloud console and save it as %s", err, credsFile)
		}
		return config, nil
	}

	return auth.NewDeferred(load, auth.NewFileTokenStore(dataPath("token_file")), consent,
		auth.WithRecorder(e.sink),
		auth.WithLogger(e.logger),
	)
}

func (e *environment) engine(sessions google.SessionSource) *calsync.Engine {
	connector := google.NewConnector(sessions, e.logger)
	return calsync.NewEngine(connector, clock.RealClock{}, calsync.Options{
		MaxPages:    viper.GetInt("max_pages"),
		CallTimeout: viper.GetDuration("call_timeout"),
	}, e.logger)
}
