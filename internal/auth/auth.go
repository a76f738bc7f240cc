// Package auth implements the AuthProvider of the specification: request
// credential derivation across the closed scheme set, and process-wide
// single-concurrency token-refresh serialization on 401.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cbre360/js-sdk/internal/model"
)

// Scheme is the closed set of credential derivations a request may use.
type Scheme string

const (
	SchemeAll     Scheme = "All"
	SchemeApp     Scheme = "App"
	SchemeBasic   Scheme = "Basic"
	SchemeClient  Scheme = "Client"
	SchemeMaster  Scheme = "Master"
	SchemeNone    Scheme = "None"
	SchemeSession Scheme = "Session"
	SchemeDefault Scheme = "Default"
)

// ActiveUser holds the session credentials attached to Session-scheme
// requests, and the refresh-token session needed to renew them.
type ActiveUser struct {
	AuthToken    string
	RefreshToken string
}

// Config carries the app-level credentials used by non-Session schemes.
type Config struct {
	AppKey       string
	AppSecret    string
	MasterSecret string
	MICHostname  string // base URL for the MIC OAuth2 token endpoint
}

// Provider is the AuthProvider: it authorizes requests per Scheme and
// serializes 401-triggered refresh across all in-flight requests for one
// process. It implements network.Authorizer without importing the network
// package, keeping the dependency direction auth -> (nothing) -> network.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	mu         sync.Mutex
	activeUser *ActiveUser
	refreshing bool
	refreshCh  chan struct{} // closed when an in-flight refresh completes
	refreshErr error
}

// New constructs a Provider. The auth scheme is not part of the Provider:
// each request takes it from its context (see WithScheme), and SchemeDefault
// applies when the context carries none.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, httpClient: httpClient, logger: logger}
}

// SetActiveUser installs (or clears, via nil) the session used by
// Session/Default-scheme requests.
func (p *Provider) SetActiveUser(u *ActiveUser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeUser = u
}

// ActiveUser returns the currently installed session, or nil.
func (p *Provider) ActiveUser() *ActiveUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeUser
}

func basicAuth(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}

// headerFor derives the Authorization header value for scheme, or an error
// if the scheme's prerequisites aren't met (e.g. Session with no active user).
func (p *Provider) headerFor(scheme Scheme) (string, error) {
	switch scheme {
	case SchemeNone:
		return "", nil
	case SchemeApp, SchemeClient:
		return basicAuth(p.cfg.AppKey, p.cfg.AppSecret), nil
	case SchemeMaster:
		return basicAuth(p.cfg.AppKey, p.cfg.MasterSecret), nil
	case SchemeBasic:
		return basicAuth(p.cfg.AppKey, p.cfg.AppSecret), nil
	case SchemeSession:
		u := p.ActiveUser()
		if u == nil || u.AuthToken == "" {
			return "", model.NewError(model.KindNoActiveUser, "Session auth requires an active user")
		}
		return "Bearer " + u.AuthToken, nil
	case SchemeAll:
		return basicAuth(p.cfg.AppKey, p.cfg.MasterSecret), nil
	case SchemeDefault:
		if h, err := p.headerFor(SchemeSession); err == nil {
			return h, nil
		}
		return p.headerFor(SchemeMaster)
	default:
		return "", model.NewError(model.KindKinvey, fmt.Sprintf("unknown auth scheme %q", scheme))
	}
}

// schemeContextKey is how the per-request scheme is threaded through
// context.Context, since Authorize's signature is fixed by the
// network.Authorizer interface.
type schemeContextKey struct{}

// WithScheme attaches the auth scheme a request should use to ctx.
func WithScheme(ctx context.Context, scheme Scheme) context.Context {
	return context.WithValue(ctx, schemeContextKey{}, scheme)
}

func schemeFromContext(ctx context.Context) Scheme {
	if s, ok := ctx.Value(schemeContextKey{}).(Scheme); ok {
		return s
	}
	return SchemeDefault
}

// Authorize implements network.Authorizer.
func (p *Provider) Authorize(ctx context.Context, req *http.Request) error {
	scheme := schemeFromContext(ctx)
	header, err := p.headerFor(scheme)
	if err != nil {
		return err
	}
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return nil
}

// Reauthorize implements network.Authorizer: it triggers (or awaits) the
// process-wide single-concurrency refresh, then re-applies credentials to
// req for one retry. A request is only ever retried once; callers track
// that by not calling Reauthorize again for the same logical request.
func (p *Provider) Reauthorize(ctx context.Context, req *http.Request) (retry bool, err error) {
	scheme := schemeFromContext(ctx)
	if scheme != SchemeSession && scheme != SchemeDefault {
		// Only Session-derived credentials are refreshable; anything else
		// failing with 401 is a hard credentials failure.
		return false, model.NewError(model.KindInvalidCredentials, "request rejected and auth scheme is not refreshable")
	}

	if err := p.refresh(ctx); err != nil {
		return false, err
	}

	header, err := p.headerFor(scheme)
	if err != nil {
		return false, err
	}
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return true, nil
}

// refresh performs the process-wide single-concurrency token refresh: the
// first caller to observe no refresh in flight performs it; every other
// concurrent caller waits on refreshCh and observes the same result.
func (p *Provider) refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.refreshing {
		ch := p.refreshCh
		p.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return model.WrapError(model.KindTimeout, "waiting for token refresh", ctx.Err())
		}
		p.mu.Lock()
		err := p.refreshErr
		p.mu.Unlock()
		return err
	}
	p.refreshing = true
	p.refreshCh = make(chan struct{})
	p.mu.Unlock()

	err := p.doRefresh(ctx)

	p.mu.Lock()
	p.refreshErr = err
	p.refreshing = false
	if err != nil {
		// Refresh failed: the active user is effectively logged out so
		// observers relying on ActiveUser() see the failure immediately.
		p.activeUser = nil
	}
	close(p.refreshCh)
	p.mu.Unlock()

	p.logger.Info("token refresh", "component", "auth.Provider", "error", errString(err))
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// doRefresh POSTs grant_type=refresh_token to the MIC token endpoint and
// installs the renewed session.
func (p *Provider) doRefresh(ctx context.Context) error {
	u := p.ActiveUser()
	if u == nil || u.RefreshToken == "" {
		return model.NewError(model.KindInvalidCredentials, "no active user session to refresh")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", u.RefreshToken)
	form.Set("client_id", p.cfg.AppKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.cfg.MICHostname, "/")+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return model.WrapError(model.KindKinvey, "build refresh request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.cfg.AppKey, p.cfg.AppSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return model.WrapError(model.KindNoResponse, "refresh request failed", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return model.NewError(model.KindInvalidGrant, fmt.Sprintf("refresh token rejected (status %d)", resp.StatusCode))
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.WrapError(model.KindKinvey, "decode refresh response", err)
	}

	p.mu.Lock()
	p.activeUser = &ActiveUser{AuthToken: payload.AccessToken, RefreshToken: payload.RefreshToken}
	p.mu.Unlock()
	return nil
}
