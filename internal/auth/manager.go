// Package auth acquires, caches and refreshes the bearer token used against
// the freta service. Two OAuth protocols are supported: client credentials
// (when a client secret is configured) and the device-code flow.
//
// auth does not import config; the caller translates its configuration into
// Settings.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/tonimelisma/freta/internal/credfile"
)

// LocalDevelopmentURL is an api_url that never receives credentials.
const LocalDevelopmentURL = "http://localhost:7071"

const microsoftAuthority = "https://login.microsoftonline.com"

// Sentinel errors.
var (
	ErrAuth         = errors.New("auth: authentication failed")
	ErrInvalidToken = errors.New("auth: token response has no expiry")
)

// Settings configures a Manager.
type Settings struct {
	APIURL       string
	ClientID     string
	TenantID     string
	ClientSecret string // empty selects the device-code flow
	Scope        string
	AuthorityURL string    // empty means the Microsoft identity platform
	CachePath    string    // empty disables the credential cache
	Prompt       io.Writer // receives the device-code sign-in instructions
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Manager hands out a currently valid access token. It is safe for
// concurrent use; the lock covers only the check-and-maybe-refresh step.
type Manager struct {
	settings   Settings
	endpoint   oauth2.Endpoint
	httpClient *http.Client
	logger     *slog.Logger

	mu   sync.Mutex
	cred Credential // nil until first use

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager creates a Manager. No network or disk access happens until the
// first Token or Login call.
func NewManager(s Settings) *Manager {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := s.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if s.Prompt == nil {
		s.Prompt = io.Discard
	}

	return &Manager{
		settings:   s,
		endpoint:   endpointFor(s.AuthorityURL, s.TenantID),
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
		sleep:      timeSleep,
	}
}

func endpointFor(authority, tenant string) oauth2.Endpoint {
	authority = strings.TrimRight(authority, "/")
	if authority == "" || authority == microsoftAuthority {
		return microsoft.AzureADEndpoint(tenant)
	}

	base := authority + "/" + tenant + "/oauth2/v2.0"

	return oauth2.Endpoint{
		AuthURL:       base + "/authorize",
		TokenURL:      base + "/token",
		DeviceAuthURL: base + "/devicecode",
		AuthStyle:     oauth2.AuthStyleInParams,
	}
}

// timeSleep waits for d or until ctx is done.
func timeSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Token returns a valid access token, or "" when the backend is a local
// development instance. The first call adopts a cached credential or logs
// in; an expired credential is refreshed exactly once.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if m.settings.APIURL == LocalDevelopmentURL {
		return "", nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		cred, err := m.acquire(ctx)
		if err != nil {
			return "", err
		}

		m.cred = cred
	}

	if tok, expiresOn := accessToken(m.cred); m.now().Before(expiresOn) {
		return tok, nil
	}

	m.logger.Debug("access token expired, refreshing", slog.String("kind", m.cred.kind()))

	cred, err := m.refresh(ctx, m.cred)
	if err != nil {
		return "", err
	}

	if err := m.persist(cred); err != nil {
		return "", err
	}

	m.cred = cred
	tok, _ := accessToken(cred)

	return tok, nil
}

// Login discards any in-memory credential and runs the configured login
// protocol, persisting the result.
func (m *Manager) Login(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, err := m.create(ctx)
	if err != nil {
		return err
	}

	if err := m.persist(cred); err != nil {
		return err
	}

	m.cred = cred

	return nil
}

// Logout deletes the credential cache at path.
func Logout(path string) error {
	if path == "" {
		return nil
	}

	return credfile.Delete(path)
}

// acquire adopts the cached credential when possible, otherwise creates and
// persists a fresh one.
func (m *Manager) acquire(ctx context.Context) (Credential, error) {
	if cred := m.loadCache(); cred != nil {
		return cred, nil
	}

	cred, err := m.create(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.persist(cred); err != nil {
		return nil, err
	}

	return cred, nil
}

// loadCache returns the cached credential, or nil on any kind of miss.
// Read failures are logged and treated as a miss.
func (m *Manager) loadCache() Credential {
	path := m.settings.CachePath
	if path == "" {
		return nil
	}

	f, err := credfile.Load(path)
	if err != nil {
		m.logger.Warn("ignoring unreadable credential cache",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)

		return nil
	}

	if f == nil {
		return nil
	}

	if f.ClientID != m.settings.ClientID {
		m.logger.Warn("cached credential belongs to another client id, logging out",
			slog.String("path", path),
			slog.String("cached_client_id", f.ClientID),
			slog.String("client_id", m.settings.ClientID),
		)

		if err := credfile.Delete(path); err != nil {
			m.logger.Warn("removing stale credential cache failed", slog.String("error", err.Error()))
		}

		return nil
	}

	cred, err := fromFile(f)
	if err != nil {
		m.logger.Warn("ignoring credential cache", slog.String("error", err.Error()))

		return nil
	}

	if _, ok := cred.(Unauthenticated); ok {
		return nil
	}

	m.logger.Debug("using cached credential", slog.String("kind", cred.kind()))

	return cred
}

func (m *Manager) persist(cred Credential) error {
	path := m.settings.CachePath
	if path == "" {
		return nil
	}

	if err := credfile.Save(path, toFile(m.settings.ClientID, cred)); err != nil {
		return fmt.Errorf("auth: saving credential: %w", err)
	}

	return nil
}

// create runs the login protocol selected by the settings.
func (m *Manager) create(ctx context.Context) (Credential, error) {
	if m.settings.ClientSecret != "" {
		return m.clientCredentials(ctx, m.settings.ClientSecret)
	}

	return m.deviceFlow(ctx)
}

// refresh renews cred, keeping its variant.
func (m *Manager) refresh(ctx context.Context, cred Credential) (Credential, error) {
	switch v := cred.(type) {
	case ClientCredentials:
		return m.clientCredentials(ctx, v.ClientSecret)
	case DeviceCode:
		renewed, err := m.refreshDevice(ctx, v.RefreshToken)
		if err == nil {
			return renewed, nil
		}

		m.logger.Warn("refresh token rejected, starting device login",
			slog.String("error", err.Error()),
		)

		return m.deviceFlow(ctx)
	default:
		return nil, fmt.Errorf("%w: cannot refresh %s credential", ErrAuth, cred.kind())
	}
}

// withHTTPClient makes the oauth2 package use the configured client.
func (m *Manager) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}
