package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roelfdiedericks/minutes/internal/config"
	mhttp "github.com/roelfdiedericks/minutes/internal/http"
	"github.com/roelfdiedericks/minutes/internal/ingest"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/media"
	"github.com/roelfdiedericks/minutes/internal/metrics"
	"github.com/roelfdiedericks/minutes/internal/notes"
	"github.com/roelfdiedericks/minutes/internal/stt"
	"github.com/roelfdiedericks/minutes/internal/user"
)

// ServeCmd starts the web UI.
type ServeCmd struct {
	Listen  string `help:"Override http.listen."`
	NoWatch bool   `help:"Do not reload the config file when it changes."`
}

func (c *ServeCmd) Run(ctx *Context) error {
	cfg, path, err := config.Load(ctx.ConfigPath)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg.Logging.Level)

	if c.Listen != "" {
		if err := mhttp.ValidateListen(c.Listen); err != nil {
			return fmt.Errorf("--listen: %w", err)
		}
		cfg.HTTP.Listen = c.Listen
	}

	L_info("minutes starting", "version", version, "config", path)

	if err := metrics.GetInstance().Open(cfg.Metrics); err != nil {
		L_warn("metrics: persistence disabled", "error", err)
	}
	defer metrics.GetInstance().Close()

	// A provider that fails to start is not fatal: notes still work and
	// transcription reports the setup error until the config is fixed.
	transcriber := stt.NewManager()
	if err := transcriber.ApplyConfig(cfg.STT); err != nil {
		L_warn("transcription unavailable until the config is fixed", "error", err)
	}
	defer transcriber.Close()

	uploads, err := media.NewStore(cfg.Media)
	if err != nil {
		return err
	}
	defer uploads.Close()
	if err := uploads.Start(); err != nil {
		return err
	}

	users := user.NewRegistry(cfg.HTTP.Users)
	controller := ingest.NewController(notes.NewStore(), transcriber)

	server, err := mhttp.NewServer(cfg.HTTP, controller, uploads, users)
	if err != nil {
		return err
	}
	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	if path != "" && !c.NoWatch {
		watcher, err := config.NewWatcher(path, 0, func(next *config.Config) {
			applyReload(ctx, cfg, next, transcriber, users)
			cfg = next
		})
		if err != nil {
			L_warn("config: hot reload disabled", "error", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	L_info("received signal, shutting down", "signal", s.String())
	return nil
}

// applyReload pushes a reloaded config into the running components.
// The note store is untouched; listen address and media settings need a restart.
func applyReload(ctx *Context, prev, next *config.Config, transcriber *stt.Manager, users *user.Registry) {
	setupLogging(ctx, next.Logging.Level)

	if err := transcriber.ApplyConfig(next.STT); err != nil {
		L_warn("config: new transcription settings failed", "error", err)
	}
	users.Replace(next.HTTP.Users)

	if next.HTTP.Listen != prev.HTTP.Listen {
		L_warn("config: http.listen changed, restart to apply", "current", prev.HTTP.Listen, "new", next.HTTP.Listen)
	}
	if next.Metrics != prev.Metrics {
		L_warn("config: metrics settings changed, restart to apply")
	}
	if next.Media != prev.Media {
		L_warn("config: media settings changed, restart to apply")
	}
}
