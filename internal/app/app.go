package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-dashboard/config"
	"stock-dashboard/internal/settings"
	"stock-dashboard/models"
	"stock-dashboard/observability"
	"stock-dashboard/refresh"
	"stock-dashboard/services"
)

// DashboardLoop defines the refresh loop operations needed by App
type DashboardLoop interface {
	Run(ctx context.Context) error
	State() models.DashboardState
	SetParameters(params models.Parameters) (models.Parameters, error)
	Session() refresh.Session
	Trigger(reason refresh.Trigger) uint64
	InvalidateNews()
}

// KeyValidator checks an API key against its provider
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, config *settings.APIKeyConfig) (*settings.ValidationResult, error)
}

// BreakerStatusProvider reports provider circuit breaker states
type BreakerStatusProvider interface {
	Status() map[string]services.CircuitBreakerStatus
}

var (
	_ DashboardLoop         = (*refresh.Loop)(nil)
	_ KeyValidator          = (*settings.Validator)(nil)
	_ BreakerStatusProvider = (*services.CircuitBreakerRegistry)(nil)
)

// App is the presentation boundary: everything the HTTP layer and the
// index page need goes through it.
type App struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan error
	cfg       *config.Config
	loop      DashboardLoop
	settings  *settings.Store
	validator KeyValidator
	breakers  BreakerStatusProvider
}

// New creates a new App
func New(cfg *config.Config, loop DashboardLoop, store *settings.Store, validator KeyValidator, breakers BreakerStatusProvider) *App {
	if store == nil {
		store = settings.NewStore()
	}
	return &App{
		ctx:       context.Background(),
		cfg:       cfg,
		loop:      loop,
		settings:  store,
		validator: validator,
		breakers:  breakers,
	}
}

// Startup starts the refresh loop in the background
func (a *App) Startup(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan error, 1)
	go func() {
		a.done <- a.loop.Run(a.ctx)
	}()
}

// Shutdown stops the refresh loop and waits for it to exit or ctx to end
func (a *App) Shutdown(ctx context.Context) error {
	if a.cancel == nil {
		return nil
	}
	a.cancel()
	select {
	case err := <-a.done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config returns the application configuration
func (a *App) Config() *config.Config {
	return a.cfg
}

// GetDashboardState returns the current dashboard state
func (a *App) GetDashboardState() models.DashboardState {
	return a.loop.State()
}

// Parameters returns the session parameters, which may be ahead of the
// published state while a cycle is pending.
func (a *App) Parameters() models.Parameters {
	return a.loop.Session().Parameters
}

// SetParameters validates and applies new dashboard parameters, triggering
// an immediate refresh
func (a *App) SetParameters(params models.Parameters) (models.Parameters, error) {
	applied, err := a.loop.SetParameters(params)
	if err != nil {
		return models.Parameters{}, err
	}
	observability.Info("Dashboard parameters updated",
		"symbols", applied.Symbols,
		"period", applied.Period,
		"compare_mode", applied.CompareMode)
	return applied, nil
}

// Refresh triggers an immediate refresh cycle
func (a *App) Refresh() uint64 {
	return a.loop.Trigger(refresh.TriggerManual)
}

// NewsAPIKey returns the current NewsAPI key, empty if none
func (a *App) NewsAPIKey() string {
	return a.settings.APIKey(settings.ServiceNewsAPI)
}

// SetNewsAPIKey stores an interactively entered NewsAPI key in memory and
// refreshes the news
func (a *App) SetNewsAPIKey(key string) error {
	if err := a.settings.SetAPIKey(&settings.APIKeyConfig{
		ServiceName: settings.ServiceNewsAPI,
		APIKey:      key,
	}); err != nil {
		return err
	}
	a.loop.InvalidateNews()
	a.loop.Trigger(refresh.TriggerManual)
	observability.Info("NewsAPI key updated")
	return nil
}

// ClearNewsAPIKey removes the NewsAPI key; news becomes unavailable
func (a *App) ClearNewsAPIKey() {
	a.settings.DeleteAPIKey(settings.ServiceNewsAPI)
	a.loop.InvalidateNews()
	a.loop.Trigger(refresh.TriggerManual)
	observability.Info("NewsAPI key cleared")
}

// NewsAPIKeyStatus returns the masked view of the NewsAPI key
func (a *App) NewsAPIKeyStatus() *settings.MaskedAPIKeyConfig {
	return a.settings.GetMasked(settings.ServiceNewsAPI)
}

// TestNewsAPIKey validates key, or the stored key when key is empty
func (a *App) TestNewsAPIKey(ctx context.Context, key string) (*settings.ValidationResult, error) {
	if a.validator == nil {
		return nil, fmt.Errorf("key validation not available")
	}
	if key == "" {
		key = a.NewsAPIKey()
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return a.validator.ValidateAPIKey(ctx, &settings.APIKeyConfig{
		ServiceName: settings.ServiceNewsAPI,
		APIKey:      key,
	})
}

// BreakerStatus returns the state of every provider circuit breaker
func (a *App) BreakerStatus() map[string]services.CircuitBreakerStatus {
	if a.breakers == nil {
		return map[string]services.CircuitBreakerStatus{}
	}
	return a.breakers.Status()
}
