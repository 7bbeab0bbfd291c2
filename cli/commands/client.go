package commands

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/petal-labs/showroom/cli/keystore"
	"github.com/petal-labs/showroom/contrib/zaplog"
	"github.com/petal-labs/showroom/core"
	"github.com/petal-labs/showroom/middleware"
)

// resolveAPIKey returns SHOWROOM_API_KEY when set, otherwise the profile's
// keystore entry.
func (a *App) resolveAPIKey() (string, error) {
	if v := os.Getenv(core.EnvAPIKey); v != "" {
		return v, nil
	}

	name := a.prof.KeyName(a.profileName)
	ks, err := a.newKeystore()
	if err != nil {
		return "", exitWithCode(ExitValidation, fmt.Errorf("failed to open keystore: %w", err))
	}
	key, err := ks.Get(name)
	if err != nil {
		var notFound *keystore.ErrKeyNotFound
		if errors.As(err, &notFound) {
			return "", exitWithCode(ExitAuth, fmt.Errorf("no API key for %s: run 'showroom keys set %s' or set %s", name, name, core.EnvAPIKey))
		}
		return "", exitWithCode(ExitValidation, fmt.Errorf("failed to get API key: %w", err))
	}
	return key, nil
}

func (a *App) resolveTenant() string {
	if a.tenantID != "" {
		return a.tenantID
	}
	if v := os.Getenv(core.EnvTenantID); v != "" {
		return v
	}
	return a.prof.TenantID
}

func (a *App) resolveBaseURL() string {
	if a.baseURL != "" {
		return a.baseURL
	}
	if v := os.Getenv(core.EnvBaseURL); v != "" {
		return v
	}
	return a.prof.BaseURL
}

// newClient builds an authenticated API client from flags, environment and
// the active profile, in that order of precedence.
func (a *App) newClient() (*core.Client, error) {
	key, err := a.resolveAPIKey()
	if err != nil {
		return nil, err
	}
	auth, err := core.NewAuthContext(key, a.resolveTenant())
	if err != nil {
		return nil, exitWithCode(ExitValidation, fmt.Errorf("%w (use --tenant, %s or tenant_id in config)", err, core.EnvTenantID))
	}

	opts := []core.ClientOption{
		core.WithUserAgent("showroom-cli/" + Version),
		core.WithTimeout(a.prof.Timeout),
		core.WithStreamTimeout(a.prof.StreamTimeout),
		core.WithTelemetry(zaplog.New(a.logger)),
		core.WithMiddleware(middleware.WithLogging(a.logger)),
	}
	if base := a.resolveBaseURL(); base != "" {
		opts = append(opts, core.WithBaseURL(base))
	}
	if r := a.prof.Retry; r.MaxAttempts > 0 || r.BaseDelay > 0 {
		opts = append(opts, core.WithRetryPolicy(core.NewRetryPolicy(core.RetryConfig{
			MaxAttempts: r.MaxAttempts,
			BaseDelay:   r.BaseDelay,
		})))
	}
	if a.prof.RateLimit > 0 {
		opts = append(opts, core.WithMiddleware(middleware.WithRateLimit(a.prof.RateLimit, 1)))
	}
	opts = append(opts, a.clientOptions...)

	c, err := core.NewClient(auth, opts...)
	if err != nil {
		return nil, exitWithCode(ExitValidation, err)
	}
	a.logger.Debug("client ready",
		zap.String("base_url", c.Config().BaseURL),
		zap.String("tenant_id", auth.TenantID()),
		zap.String("api_key", auth.APIKey().Hint()),
	)
	return c, nil
}
