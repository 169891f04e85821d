// Command gdrive-auth mints the GDRIVE_REFRESH_TOKEN used by the gdrive
// storage provider. It runs the OAuth consent flow against a loopback
// callback and prints the refresh token.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"

	"galarender/internal/pkg/errors"
	"galarender/internal/pkg/logger"
	"galarender/internal/worker/util"
)

const authTimeout = 3 * time.Minute

func main() {
	log := logger.NewDefault().WithComponent("gdrive-auth")
	if err := run(context.Background(), os.Stdout); err != nil {
		log.WithError(err).Error("authorization failed")
		os.Exit(errors.GetExitCode(err))
	}
}

func run(ctx context.Context, out io.Writer) error {
	clientID := util.Env("GDRIVE_CLIENT_ID", "")
	clientSecret := util.Env("GDRIVE_CLIENT_SECRET", "")
	if clientID == "" || clientSecret == "" {
		return errors.Validation("GDRIVE_CLIENT_ID and GDRIVE_CLIENT_SECRET are required")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return errors.Wrap(err, "gdrive-auth.listen", "cannot open callback listener")
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	redirectURL := fmt.Sprintf("http://127.0.0.1:%d/callback", port)

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
		RedirectURL:  redirectURL,
	}

	flow := newAuthFlow(randomState())

	mux := http.NewServeMux()
	mux.Handle("/callback", flow)

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	defer srv.Close()

	// Offline access with forced consent so a refresh token is issued.
	authURL := conf.AuthCodeURL(
		flow.state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)

	fmt.Fprintln(out, "Open this URL in your browser:")
	fmt.Fprintln(out, authURL)
	fmt.Fprintln(out, "Waiting for authorization on", redirectURL)

	code, err := flow.wait(ctx, authTimeout)
	if err != nil {
		return err
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "gdrive-auth.exchange", "token exchange failed")
	}

	if strings.TrimSpace(tok.RefreshToken) == "" {
		return errors.New(errors.CodeInternal,
			"no refresh token returned; revoke the app at https://myaccount.google.com/permissions and retry")
	}

	fmt.Fprintln(out, "GDRIVE_REFRESH_TOKEN:")
	fmt.Fprintln(out, tok.RefreshToken)
	return nil
}

// authFlow receives exactly one OAuth callback.
type authFlow struct {
	state  string
	codeCh chan string
	errCh  chan error
}

func newAuthFlow(state string) *authFlow {
	return &authFlow{
		state:  state,
		codeCh: make(chan string, 1),
		errCh:  make(chan error, 1),
	}
}

func (f *authFlow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") != f.state {
		http.Error(w, "invalid state", http.StatusBadRequest)
		f.fail(errors.Validation("invalid state"))
		return
	}
	if e := q.Get("error"); e != "" {
		http.Error(w, "auth error: "+e, http.StatusBadRequest)
		f.fail(errors.Newf(errors.CodeValidation, "auth error: %s", e))
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		f.fail(errors.Validation("missing code"))
		return
	}

	fmt.Fprintln(w, "OK. You can close this window and return to the terminal.")
	select {
	case f.codeCh <- code:
	default:
	}
}

func (f *authFlow) fail(err error) {
	select {
	case f.errCh <- err:
	default:
	}
}

func (f *authFlow) wait(ctx context.Context, timeout time.Duration) (string, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case code := <-f.codeCh:
		return code, nil
	case err := <-f.errCh:
		return "", err
	case <-t.C:
		return "", errors.New(errors.CodeCanceled, "timed out waiting for authorization")
	case <-ctx.Done():
		return "", errors.WrapWithCode(ctx.Err(), errors.CodeCanceled, "gdrive-auth.wait", "authorization interrupted")
	}
}

func randomState() string {
	b := make([]byte, 18)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
