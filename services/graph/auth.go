package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mailsink/mailsink/config"
	localerrors "github.com/mailsink/mailsink/internal/errors"
	"github.com/mailsink/mailsink/internal/logger"
)

const (
	defaultAuthority = "https://login.microsoftonline.com/consumers"
	graphAppScope    = "https://graph.microsoft.com/.default"
)

func authorityURL(cfg *config.GraphConfig) string {
	if cfg.Authority != "" {
		return cfg.Authority
	}
	if cfg.TenantID != "" {
		return "https://login.microsoftonline.com/" + cfg.TenantID
	}
	return defaultAuthority
}

// newTokenSource picks the auth flow from config: confidential-client
// credentials for a fixed mailbox, or the device-authorization grant with a
// reusable token cache for the signed-in user's mailbox.
func newTokenSource(ctx context.Context, cfg *config.GraphConfig, log logger.Logger) (oauth2.TokenSource, error) {
	authority := authorityURL(cfg)

	if cfg.AuthMode == config.GraphAuthClientCredentials {
		conf := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     authority + "/oauth2/v2.0/token",
			Scopes:       []string{graphAppScope},
		}
		return conf.TokenSource(ctx), nil
	}

	conf := &oauth2.Config{
		ClientID: cfg.ClientID,
		Scopes:   append(cfg.Scopes(), "offline_access"),
		Endpoint: oauth2.Endpoint{
			AuthURL:       authority + "/oauth2/v2.0/authorize",
			TokenURL:      authority + "/oauth2/v2.0/token",
			DeviceAuthURL: authority + "/oauth2/v2.0/devicecode",
		},
	}

	token, err := tokenFromFile(cfg.TokenCache)
	if err != nil {
		token, err = tokenFromDeviceFlow(ctx, conf, log)
		if err != nil {
			return nil, err
		}
		if err := saveToken(cfg.TokenCache, token); err != nil {
			log.Warnf("unable to persist token cache: %v", err)
		}
	}

	return &cachingTokenSource{
		src:  conf.TokenSource(ctx, token),
		path: cfg.TokenCache,
		last: token,
	}, nil
}

func tokenFromDeviceFlow(ctx context.Context, conf *oauth2.Config, log logger.Logger) (*oauth2.Token, error) {
	deviceAuth, err := conf.DeviceAuth(ctx)
	if err != nil {
		return nil, errors.Wrap(localerrors.ErrAuthenticationFailed, err.Error())
	}

	log.Infof("to sign in, open %s and enter the code %s", deviceAuth.VerificationURI, deviceAuth.UserCode)

	token, err := conf.DeviceAccessToken(ctx, deviceAuth)
	if err != nil {
		return nil, errors.Wrap(localerrors.ErrAuthenticationFailed, err.Error())
	}
	return token, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	if token.RefreshToken == "" && !token.Valid() {
		return nil, fmt.Errorf("cached token expired and not refreshable")
	}
	return token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// cachingTokenSource persists refreshed tokens back to the cache file so the
// next run authenticates silently.
type cachingTokenSource struct {
	src  oauth2.TokenSource
	path string

	mu   sync.Mutex
	last *oauth2.Token
}

func (c *cachingTokenSource) Token() (*oauth2.Token, error) {
	token, err := c.src.Token()
	if err != nil {
		return nil, errors.Wrap(localerrors.ErrAuthenticationFailed, err.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil || c.last.AccessToken != token.AccessToken {
		c.last = token
		if err := saveToken(c.path, token); err != nil {
			return token, nil // keep going, the token itself is fine
		}
	}
	return token, nil
}
