package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/lizard/internal/app"
	"github.com/ayusman/lizard/internal/config"
	"github.com/ayusman/lizard/internal/hook"
	"github.com/ayusman/lizard/internal/logger"
	"github.com/ayusman/lizard/internal/report"
	"github.com/ayusman/lizard/internal/server"
	"github.com/ayusman/lizard/internal/store"
	"github.com/ayusman/lizard/internal/tray"
)

const shutdownTimeout = 5 * time.Second

// runtimeEnv bundles the long-lived components shared by serve and tray.
type runtimeEnv struct {
	cfg   config.Config
	log   *zap.Logger
	store *store.Store
	hooks *hook.Dispatcher
	app   *app.App
	srv   *server.Server

	exports sync.WaitGroup
}

func newRuntimeEnv(cfg config.Config, pinned pins) (*runtimeEnv, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	log, err := logger.New(cfg.Log, "lizard")
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	hooks := hook.NewManager(cfg.HookDir())
	if err := hooks.Discover(); err != nil {
		log.Warn("discover hooks", zap.String("dir", hooks.Dir()), zap.Error(err))
	}
	for _, h := range hooks.List() {
		log.Info("hook loaded", zap.String("name", h.Manifest.Name), zap.Strings("events", h.Manifest.Events))
	}
	dispatcher := hook.NewDispatcher(hooks, hook.NewExecutor(cfg.Hooks.Timeout), log)

	a := app.New(app.Config{
		CameraConfig:   cfg.Camera,
		DetectorConfig: cfg.Detector,
		Store:          st,
		Hooks:          dispatcher,
		Threshold:      cfg.Threshold,
		RatioFunc:      cfg.RatioFunc(),
		Target:         cfg.TargetDuration(),
		PinThreshold:   pinned.threshold,
		PinTarget:      pinned.target,
		Logger:         log,
	})

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		log.Info("serving static files", zap.String("dir", staticDir))
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		App:       a,
		Logger:    log,
	})

	env := &runtimeEnv{cfg: cfg, log: log, store: st, hooks: dispatcher, app: a, srv: srv}
	a.Subscribe(env.exportOnComplete())
	return env, nil
}

// exportOnComplete returns a status subscriber that saves the chart of
// every session that completes, whether stopped or timed out.
func (e *runtimeEnv) exportOnComplete() func(app.Status) {
	var mu sync.Mutex
	var lastState string

	return func(s app.Status) {
		mu.Lock()
		completed := lastState == "running" && s.State == "completed"
		lastState = s.State
		mu.Unlock()

		if completed {
			e.exports.Add(1)
			go func() {
				defer e.exports.Done()
				e.saveChart(s.SessionID)
			}()
		}
	}
}

// start launches the capture pipeline and the HTTP server. Server errors
// are delivered on the returned channel.
func (e *runtimeEnv) start() (<-chan error, error) {
	if err := e.app.Start(); err != nil {
		return nil, fmt.Errorf("start pipeline: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.srv.ListenAndServe(e.cfg.Addr)
	}()
	return errCh, nil
}

func (e *runtimeEnv) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.srv.Shutdown(ctx); err != nil {
		e.log.Warn("server shutdown", zap.Error(err))
	}
	e.app.Stop()
	e.hooks.Wait()
	e.exports.Wait()
	if err := e.store.Close(); err != nil {
		e.log.Warn("close store", zap.Error(err))
	}
	_ = e.log.Sync()
}

// saveChart writes the last report's chart under <data-dir>/reports.
func (e *runtimeEnv) saveChart(sessionID string) {
	rep, err := e.app.LastReport()
	if err != nil {
		return
	}

	dir := filepath.Join(e.cfg.DataDir, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.log.Warn("create reports directory", zap.Error(err))
		return
	}

	path := filepath.Join(dir, sessionID+".png")
	if err := report.SavePNG(path, rep); err != nil {
		e.log.Warn("save chart", zap.Error(err))
		return
	}
	e.log.Info("chart saved", zap.String("path", path))
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the capture pipeline and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			env, err := newRuntimeEnv(cfg, pinnedFlags(cmd))
			if err != nil {
				return err
			}
			defer env.close()

			errCh, err := env.start()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				env.log.Info("shutting down")
				return nil
			}
		},
	}
}

func newTrayCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tray",
		Short: "Run the HTTP API with a system tray menu",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			env, err := newRuntimeEnv(cfg, pinnedFlags(cmd))
			if err != nil {
				return err
			}
			defer env.close()

			errCh, err := env.start()
			if err != nil {
				return err
			}

			t := tray.New()
			env.app.Subscribe(t.Update)

			t.OnStart(func() {
				if _, err := env.app.StartSession(0); err != nil {
					env.log.Warn("start session", zap.Error(err))
				}
			})
			t.OnStop(func() {
				if _, err := env.app.StopSession(); err != nil {
					env.log.Warn("stop session", zap.Error(err))
				}
			})
			t.OnDashboard(func() {
				if err := openBrowser(dashboardURL(cfg.Addr)); err != nil {
					env.log.Warn("open dashboard", zap.Error(err))
				}
			})

			t.OnQuit(func() {
				env.log.Info("quit from tray menu")
			})

			quitErr := make(chan error, 1)
			go func() {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				select {
				case err := <-errCh:
					quitErr <- err
				case <-ctx.Done():
				}
				t.Quit()
			}()

			// systray needs the main goroutine.
			t.Run()
			select {
			case err := <-quitErr:
				return err
			default:
			}
			return nil
		},
	}
}

// dashboardURL turns a listen address into a browsable URL.
func dashboardURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
