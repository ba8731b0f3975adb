package cmd

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theakshaypant/today/internal/auth"
	"github.com/theakshaypant/today/internal/core"
	"github.com/theakshaypant/today/internal/errsink"
	"golang.org/x/oauth2"
)

func testEnv(t *testing.T) *environment {
	t.Helper()
	dir := t.TempDir()
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()
	viper.Set("app_data_dir", dir)

	logger := slog.New(slog.DiscardHandler)
	return &environment{dir: dir, logger: logger, sink: errsink.New(dir, errsink.WithLogger(logger))}
}

func TestAuthenticator_TokenWithoutCredentialsFile(t *testing.T) {
	e := testEnv(t)
	tok := &oauth2.Token{AccessToken: "stored", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, auth.NewFileTokenStore(dataPath("token_file")).Save(tok))

	s, err := e.authenticator(auth.NoConsent{}).EnsureSession(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "stored", s.Token.AccessToken)
}

func TestAuthenticator_NothingOnDiskIsUnrecoverable(t *testing.T) {
	e := testEnv(t)

	_, err := e.authenticator(e.consent(nil)).EnsureSession(context.Background())

	require.ErrorIs(t, err, core.ErrAuthUnrecoverable)
	assert.Contains(t, err.Error(), "credentials.json")
}
