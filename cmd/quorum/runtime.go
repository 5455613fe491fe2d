package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quorum/internal/agents"
	"quorum/internal/archive"
	"quorum/internal/config"
	"quorum/internal/council"
	"quorum/internal/eventbus"
	"quorum/internal/llm"
	"quorum/internal/status"
)

// runtime is the composed application: every component the commands share.
type runtime struct {
	cfg      *config.Config
	bus      *eventbus.Bus
	registry *council.Registry
	store    *archive.Store
	recorder *archive.Recorder
}

// buildRuntime wires the council from configuration. Optional components
// (archive, dashboard) are attached only when enabled.
func buildRuntime(ctx context.Context, cfg *config.Config, log *zap.Logger) (*runtime, error) {
	client, err := llm.New(llm.Config{
		Provider: llm.Provider(cfg.LLM.Provider),
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLMTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	ports := agents.New(agents.Options{
		Client:  client,
		Logger:  log,
		Retries: cfg.LLM.Retries,
	})

	bus := eventbus.New(ctx, eventbus.Options{Logger: log})

	sinks := []council.EventSink{bus}
	rt := &runtime{cfg: cfg, bus: bus}

	rt.registry = council.NewRegistry(ports, council.SinkFunc(func(ev council.Event) {
		for _, s := range sinks {
			s.Publish(ev)
		}
	}), log)

	if cfg.Archive.Enabled {
		store, err := archive.Open(cfg.Archive.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		rt.store = store
		rt.recorder = archive.NewRecorder(store, rt.registry, log)
		sinks = append(sinks, rt.recorder)
	}
	if cfg.Status.Enabled {
		sinks = append(sinks, status.NewWriter(cfg.Status.DashboardPath, log))
	}
	return rt, nil
}

// close flushes the recorder and releases the archive.
func (rt *runtime) close() {
	if rt.recorder != nil {
		rt.recorder.Close()
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
	rt.bus.Close()
}
