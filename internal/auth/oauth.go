// Package auth obtains Google credentials for the Firestore store.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/pdxmph/todo-tui/internal/config"
)

const (
	// Scope grants read/write access to Cloud Firestore
	Scope = "https://www.googleapis.com/auth/datastore"

	// CallbackPort is where the local server listens for the OAuth redirect.
	// The client secrets' redirect URI must point here.
	CallbackPort = "6789"

	loginTimeout = 5 * time.Minute
)

// ErrNoToken means no cached user token exists yet
var ErrNoToken = errors.New("no cached token; run 'todo login'")

// TokenSource returns credentials for Firestore. In order of preference:
// an explicit credentials file, the token cached by 'todo login', and
// Application Default Credentials.
func TokenSource(ctx context.Context, fc config.FirestoreConfig) (oauth2.TokenSource, error) {
	if fc.CredentialsFile != "" {
		data, err := os.ReadFile(fc.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file %s: %w", fc.CredentialsFile, err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, Scope)
		if err != nil {
			return nil, fmt.Errorf("parsing credentials file: %w", err)
		}
		return creds.TokenSource, nil
	}

	ts, err := cachedTokenSource(ctx, fc)
	if err == nil {
		return ts, nil
	}
	if !errors.Is(err, ErrNoToken) && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	creds, adcErr := google.FindDefaultCredentials(ctx, Scope)
	if adcErr != nil {
		return nil, fmt.Errorf("no Firestore credentials: %w (default credentials: %v)", err, adcErr)
	}
	return creds.TokenSource, nil
}

// cachedTokenSource refreshes the token saved by Login and writes refreshed
// tokens back to the cache.
func cachedTokenSource(ctx context.Context, fc config.FirestoreConfig) (oauth2.TokenSource, error) {
	tok, err := tokenFromFile(fc.TokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, err
	}

	cfg, err := oauthConfig(fc.ClientSecrets)
	if err != nil {
		return nil, err
	}

	return &savingTokenSource{
		base: oauth2.ReuseTokenSource(tok, cfg.TokenSource(ctx, tok)),
		path: fc.TokenFile,
		last: tok,
	}, nil
}

type savingTokenSource struct {
	base oauth2.TokenSource
	path string

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || tok.AccessToken != s.last.AccessToken || tok.RefreshToken != s.last.RefreshToken {
		if err := saveToken(s.path, tok); err != nil {
			slog.Warn("caching refreshed token", "path", s.path, "error", err)
		}
		s.last = tok
	}
	return tok, nil
}

// oauthConfig reads installed-app client secrets and points the redirect at
// the local callback server.
func oauthConfig(secretsPath string) (*oauth2.Config, error) {
	b, err := os.ReadFile(secretsPath)
	if err != nil {
		return nil, fmt.Errorf("reading client secrets %s: %w", secretsPath, err)
	}

	cfg, err := google.ConfigFromJSON(b, Scope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secrets: %w", err)
	}
	cfg.RedirectURL = redirectURL(cfg.RedirectURL)
	return cfg, nil
}

// redirectURL forces localhost redirects onto CallbackPort and replaces the
// retired out-of-band URI.
func redirectURL(configured string) string {
	fallback := fmt.Sprintf("http://localhost:%s/oauth2callback", CallbackPort)
	if configured == "" || configured == "urn:ietf:wg:oauth:2.0:oob" {
		return fallback
	}

	u, err := url.Parse(configured)
	if err != nil {
		slog.Warn("unparsable redirect URL, using default", "url", configured, "error", err)
		return fallback
	}
	if u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		slog.Warn("redirect URL is not a localhost callback", "url", configured)
		return configured
	}
	u.Host = net.JoinHostPort(u.Hostname(), CallbackPort)
	return u.String()
}

// Login runs the browser authorization flow and caches the resulting token.
// The authorization URL is written to out.
func Login(ctx context.Context, fc config.FirestoreConfig, out io.Writer) error {
	cfg, err := oauthConfig(fc.ClientSecrets)
	if err != nil {
		return err
	}

	tok, err := tokenFromWeb(ctx, cfg, out)
	if err != nil {
		return err
	}

	if err := saveToken(fc.TokenFile, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved token to %s\n", fc.TokenFile)
	return nil
}

func tokenFromWeb(ctx context.Context, cfg *oauth2.Config, out io.Writer) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	listener, err := net.Listen("tcp", net.JoinHostPort("localhost", CallbackPort))
	if err != nil {
		return nil, fmt.Errorf("listening on port %s: %w", CallbackPort, err)
	}

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	server := &http.Server{
		Handler:      callbackHandler(state, codeCh, errCh),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server: %w", err)
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Fprintf(out, "Open this URL in your browser to authorize todo:\n%s\n", authURL)

	select {
	case code := <-codeCh:
		tok, err := cfg.Exchange(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("exchanging authorization code: %w", err)
		}
		return tok, nil
	case err := <-errCh:
		return nil, err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
}

func callbackHandler(state string, codeCh chan<- string, errCh chan<- error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if msg := q.Get("error"); msg != "" {
			http.Error(w, "authorization denied", http.StatusForbidden)
			select {
			case errCh <- fmt.Errorf("authorization denied: %s", msg):
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "authorization code not found", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "Authentication successful! You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token from %s: %w", path, err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("caching token to %s: %w", path, err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	return nil
}
