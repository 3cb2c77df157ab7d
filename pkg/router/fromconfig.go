package router

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arfandy/toolbridge/internal/config"
	"github.com/arfandy/toolbridge/internal/logger"
	"github.com/arfandy/toolbridge/pkg/localtools"
	"github.com/arfandy/toolbridge/pkg/provider"
	"github.com/arfandy/toolbridge/pkg/recorder"
)

// NewFromConfig builds a router, its provider pool, its recorder, and
// the process logger from configuration. Local tools are registered by
// the embedding application afterwards via Registry().
func NewFromConfig(cfg *config.Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCloser, err := logger.Setup(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	pool := provider.NewPool(providerRecords(cfg.Providers))
	pool.SetTimeouts(
		time.Duration(cfg.Timeouts.ConnectSeconds)*time.Second,
		time.Duration(cfg.Timeouts.ExecuteSeconds)*time.Second,
	)

	r := New(localtools.NewRegistry(), pool)
	r.closers = append(r.closers, func() { logCloser.Close() })
	r.SetRoutes(configRoutes(cfg.Routes))
	r.SetMaxEventBytes(cfg.Recorder.MaxEventBytes)

	if cfg.CatalogRefresh != "" {
		if err := pool.StartRefresh(cfg.CatalogRefresh); err != nil {
			r.Close()
			return nil, err
		}
	}

	switch cfg.Recorder.Mode {
	case "", "off":
	case "websocket":
		ws := recorder.NewWSRecorder(cfg.Recorder.URL)
		ws.Start()
		r.SetRecorder(ws)
		r.closers = append(r.closers, ws.Stop)
	case "sqlite":
		store, err := recorder.OpenSQLiteStore(cfg.Recorder.Path)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to open recorder store: %w", err)
		}
		r.SetRecorder(store)
		r.closers = append(r.closers, store.Close)
	}

	log.Info().
		Int("providers", len(cfg.Providers)).
		Int("routes", len(cfg.Routes)).
		Msg("Tool router configured")
	return r, nil
}

// ApplyConfig reconciles a running router against a reloaded
// configuration: provider records and routes are swapped in place.
// Recorder and logging changes require a restart and are ignored here.
func (r *Router) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.pool.SetRecords(providerRecords(cfg.Providers))
	r.pool.SetTimeouts(
		time.Duration(cfg.Timeouts.ConnectSeconds)*time.Second,
		time.Duration(cfg.Timeouts.ExecuteSeconds)*time.Second,
	)
	r.SetRoutes(configRoutes(cfg.Routes))
	r.SetMaxEventBytes(cfg.Recorder.MaxEventBytes)

	log.Info().Msg("Tool router reconfigured")
	return nil
}

func providerRecords(pcs []config.ProviderConfig) []provider.Record {
	records := make([]provider.Record, 0, len(pcs))
	for _, pc := range pcs {
		records = append(records, provider.Record{
			Name:    pc.Name,
			Command: pc.Command,
			Args:    pc.Args,
			Env:     pc.Env,
		})
	}
	return records
}

func configRoutes(rcs map[string]config.RouteConfig) map[string]Route {
	routes := make(map[string]Route, len(rcs))
	for logical, rc := range rcs {
		route := Route{Provider: rc.Provider, Tool: rc.Tool}
		if rc.FollowUpTool != "" {
			route.FollowUp = &FollowUp{Tool: rc.FollowUpTool, Args: rc.FollowUpArgs}
		}
		routes[logical] = route
	}
	return routes
}
