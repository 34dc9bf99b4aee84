package cli

import (
	"log/slog"

	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/loader"
	"github.com/roach88/reflred/internal/manifest"
	"github.com/roach88/reflred/internal/metrics"
	"github.com/roach88/reflred/internal/session"
	"github.com/roach88/reflred/internal/store"
)

// workspace is a session prepared from a manifest, its configuration and
// an optional journal.
type workspace struct {
	manifest *manifest.Manifest
	session  *session.Session
	metrics  *metrics.Metrics
	journal  *store.Store
}

// workspaceOptions are the inputs shared by commands that run a session.
type workspaceOptions struct {
	Manifest string
	Config   string
	Database string
}

func openWorkspace(opts workspaceOptions) (*workspace, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	slog.Debug("configuration loaded", "config", cfg.String())

	m, err := manifest.Load(opts.Manifest)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load manifest", err)
	}

	w := &workspace{manifest: m, metrics: metrics.New()}
	sessOpts := []session.Option{
		session.WithName(m.Name),
		session.WithMetrics(w.metrics),
		session.WithCacheSize(cfg.MaxCache),
	}
	if opts.Database != "" {
		slog.Info("opening journal", "path", opts.Database)
		w.journal, err = store.Open(opts.Database)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		sessOpts = append(sessOpts, session.WithJournal(w.journal))
	}

	w.session = session.New(loader.New(), cfg, sessOpts...)
	return w, nil
}

// Close releases the journal, if any.
func (w *workspace) Close() {
	if w.journal == nil {
		return
	}
	if err := w.journal.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
