package app

import (
	"context"

	"github.com/hyy20190326/luis-0509/internal/config"
)

// Serve loads the config at path, starts the service and runs it until ctx
// is done. ready, when set, sees the application after its listeners are
// bound and before it serves.
func Serve(ctx context.Context, path string, ready func(*Application)) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	return ServeSettings(ctx, cfg, ready)
}

// ServeSettings is Serve for settings that are already loaded.
func ServeSettings(ctx context.Context, cfg *config.Settings, ready func(*Application)) error {
	a, err := New(cfg)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.Start(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("service failed to start")
		return err
	}
	if ready != nil {
		ready(a)
	}
	return a.Run(ctx)
}
