// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/user"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jeranaias/pastel-chat/internal/backend"
	"github.com/jeranaias/pastel-chat/internal/config"
	"github.com/jeranaias/pastel-chat/internal/logger"
	"github.com/jeranaias/pastel-chat/internal/model"
)

// ErrNoActiveSession is returned when a credential has no source: nothing in
// config, nothing cached and no client-credentials flow configured.
var ErrNoActiveSession = errors.New("no active account")

// Cache keys.
const (
	keyAzureToken   = "oauth:azure"
	keyM365Token    = "oauth:m365"
	keySessionToken = "pastel:token"
	keySessionEmail = "pastel:email"
)

// tokenHTTPTimeout bounds one token endpoint round trip.
const tokenHTTPTimeout = 30 * time.Second

// =============================================================================
// PROVIDER
// =============================================================================

// Provider resolves credentials from config, the token cache and the
// client-credentials flow. It implements backend.Credentials.
type Provider struct {
	cfg   *config.Config
	cache *Cache
	log   logrus.FieldLogger

	mu    sync.Mutex
	azure oauth2.TokenSource
	m365  oauth2.TokenSource

	hostname func() (string, error)
}

var _ backend.Credentials = (*Provider)(nil)

// NewProvider builds a provider over a snapshot of cfg. cache may be nil.
func NewProvider(cfg *config.Config, cache *Cache, log logrus.FieldLogger) *Provider {
	if cfg == nil {
		cfg = config.Default()
	}
	p := &Provider{
		cfg:      cfg.Clone(),
		cache:    cache,
		log:      logger.OrDiscard(log).WithField("component", "auth"),
		hostname: os.Hostname,
	}
	p.reset()
	return p
}

// Open builds a provider and opens the token cache when it is enabled. A
// cache that fails to open is logged and skipped.
func Open(cfg *config.Config, log logrus.FieldLogger) *Provider {
	if cfg == nil {
		cfg = config.Default()
	}
	log = logger.OrDiscard(log)

	var cache *Cache
	if cfg.TokenCache.Enabled {
		path, err := cfg.TokenCachePath()
		if err == nil {
			cache, err = OpenCache(path, cfg.TokenCache.Passphrase)
		}
		if err != nil {
			log.WithError(err).Warn("token cache unavailable")
			cache = nil
		}
	}
	return NewProvider(cfg, cache, log)
}

// Close releases the token cache.
func (p *Provider) Close() error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Close()
}

// Cache returns the token cache, or nil.
func (p *Provider) Cache() *Cache {
	return p.cache
}

// reset rebuilds the token sources, dropping any in-memory tokens.
func (p *Provider) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.cfg.Identity
	p.azure = p.tokenSource(id.AzureToken, id.AzureScopes, keyAzureToken)
	p.m365 = p.tokenSource(id.M365Token, id.M365Scopes, keyM365Token)
}

func (p *Provider) tokenSource(static string, scopes []string, key string) oauth2.TokenSource {
	if static != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: static, TokenType: "Bearer"})
	}

	var upstream oauth2.TokenSource
	if conf := p.clientCredentials(scopes); conf != nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient,
			&http.Client{Timeout: tokenHTTPTimeout})
		upstream = conf.TokenSource(ctx)
	}
	return oauth2.ReuseTokenSource(nil, &cachedSource{
		cache:    p.cache,
		key:      key,
		upstream: upstream,
		log:      p.log,
	})
}

func (p *Provider) clientCredentials(scopes []string) *clientcredentials.Config {
	id := p.cfg.Identity
	if id.ClientID == "" || id.TenantID == "" {
		return nil
	}
	return &clientcredentials.Config{
		ClientID:     id.ClientID,
		ClientSecret: id.ClientSecret,
		TokenURL:     TokenURL(id.Authority, id.TenantID),
		Scopes:       scopes,
	}
}

// TokenURL returns the v2 token endpoint for a tenant.
func TokenURL(authority, tenant string) string {
	return strings.TrimRight(authority, "/") + "/" + tenant + "/oauth2/v2.0/token"
}

// =============================================================================
// CREDENTIALS
// =============================================================================

// AzureToken returns an Azure DevOps access token.
func (p *Provider) AzureToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	src := p.azure
	p.mu.Unlock()
	return p.token(ctx, "azure", src)
}

// M365Token returns a Microsoft Graph access token.
func (p *Provider) M365Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	src := p.m365
	p.mu.Unlock()
	return p.token(ctx, "m365", src)
}

func (p *Provider) token(ctx context.Context, name string, src oauth2.TokenSource) (string, error) {
	tok, err := tokenWithContext(ctx, src)
	if err != nil {
		if !errors.Is(err, ErrNoActiveSession) {
			p.log.WithError(err).WithField("token", name).Warn("token acquisition failed")
		}
		return "", fmt.Errorf("%s token: %w", name, err)
	}
	return tok.AccessToken, nil
}

// tokenWithContext runs src.Token and gives up when ctx ends first.
func tokenWithContext(ctx context.Context, src oauth2.TokenSource) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	type result struct {
		tok *oauth2.Token
		err error
	}
	ch := make(chan result, 1)
	go func() {
		tok, err := src.Token()
		ch <- result{tok, err}
	}()
	select {
	case r := <-ch:
		return r.tok, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BackendSession returns the backend session token and email, from config
// first and then the cache.
func (p *Provider) BackendSession(ctx context.Context) (backend.Session, error) {
	sess := backend.Session{Token: p.cfg.Pastel.Token, Email: p.cfg.Pastel.Email}

	if p.cache != nil {
		if sess.Token == "" {
			sess.Token = p.cached(ctx, keySessionToken)
		}
		if sess.Email == "" {
			sess.Email = p.cached(ctx, keySessionEmail)
		}
	}
	if sess.Token == "" || sess.Email == "" {
		return backend.Session{}, fmt.Errorf("backend session: %w", ErrNoActiveSession)
	}
	return sess, nil
}

func (p *Provider) cached(ctx context.Context, key string) string {
	v, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			p.log.WithError(err).WithField("key", key).Warn("token cache read failed")
		}
		return ""
	}
	return v
}

// MachineName returns the configured machine name or the host name.
func (p *Provider) MachineName() (string, error) {
	if name := p.cfg.Pastel.MachineName; name != "" {
		return name, nil
	}
	name, err := p.hostname()
	if err != nil {
		return "", fmt.Errorf("machine name: %w", err)
	}
	return name, nil
}

// UserName returns the display name for the greeting.
func (p *Provider) UserName() string {
	return UserName(p.cfg)
}

// UserName resolves the greeting name: config, then the OS account, then
// model.DefaultUserName.
func UserName(cfg *config.Config) string {
	if cfg != nil && strings.TrimSpace(cfg.UserName) != "" {
		return strings.TrimSpace(cfg.UserName)
	}
	if u, err := user.Current(); err == nil {
		if name := strings.TrimSpace(u.Name); name != "" {
			return strings.Fields(name)[0]
		}
		if u.Username != "" {
			return u.Username
		}
	}
	return model.DefaultUserName
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// Login stores the backend session identity in the cache.
func (p *Provider) Login(ctx context.Context, sess backend.Session) error {
	if p.cache == nil {
		return errors.New("token cache is disabled")
	}
	if sess.Token == "" || sess.Email == "" {
		return errors.New("session token and email are required")
	}
	if err := p.cache.Put(ctx, keySessionToken, sess.Token, time.Time{}); err != nil {
		return err
	}
	return p.cache.Put(ctx, keySessionEmail, sess.Email, time.Time{})
}

// PrimeResult reports one token acquisition attempted by Prime.
type PrimeResult struct {
	Name string
	Err  error
}

// Prime acquires Azure and M365 tokens so later requests hit the cache.
func (p *Provider) Prime(ctx context.Context) []PrimeResult {
	_, azErr := p.AzureToken(ctx)
	_, mErr := p.M365Token(ctx)
	return []PrimeResult{{Name: "azure", Err: azErr}, {Name: "m365", Err: mErr}}
}

// Logout clears the token cache and forgets in-memory tokens.
func (p *Provider) Logout(ctx context.Context) error {
	if p.cache != nil {
		if err := p.cache.Clear(ctx); err != nil {
			return err
		}
	}
	p.reset()
	return nil
}

// =============================================================================
// CACHED TOKEN SOURCE
// =============================================================================

// cachedSource reads tokens from the cache before asking upstream, and
// writes fresh upstream tokens back.
type cachedSource struct {
	cache    *Cache
	key      string
	upstream oauth2.TokenSource
	log      logrus.FieldLogger
}

type storedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Expiry      time.Time `json:"expiry,omitempty"`
}

func (s *cachedSource) Token() (*oauth2.Token, error) {
	ctx := context.Background()

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, s.key); err == nil {
			var st storedToken
			if err := json.Unmarshal([]byte(raw), &st); err == nil {
				tok := &oauth2.Token{AccessToken: st.AccessToken, TokenType: st.TokenType, Expiry: st.Expiry}
				if tok.Valid() {
					return tok, nil
				}
			}
		} else if !errors.Is(err, ErrCacheMiss) {
			s.log.WithError(err).WithField("key", s.key).Warn("token cache read failed")
		}
	}

	if s.upstream == nil {
		return nil, ErrNoActiveSession
	}
	tok, err := s.upstream.Token()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		data, _ := json.Marshal(storedToken{AccessToken: tok.AccessToken, TokenType: tok.TokenType, Expiry: tok.Expiry})
		if err := s.cache.Put(ctx, s.key, string(data), tok.Expiry); err != nil {
			s.log.WithError(err).WithField("key", s.key).Warn("token cache write failed")
		}
	}
	return tok, nil
}
