package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/termdiff/internal/config"
	"github.com/dshills/termdiff/internal/engine"
	"github.com/dshills/termdiff/internal/handle"
	"github.com/dshills/termdiff/internal/logging"
	"github.com/dshills/termdiff/internal/renderer/backend"
	"github.com/dshills/termdiff/internal/renderer/core"
	"github.com/dshills/termdiff/internal/script"
)

type renderOptions struct {
	configPath  string
	runtimePath string
	watch       bool
	frames      int
	headless    string
	metrics     bool
	altScreen   bool
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render SCRIPT",
		Short: "Render frames painted by a Lua script",
		Long: "Render calls frame(n) in the Lua script once per frame and presents\n" +
			"the result to the terminal, or to stdout with --headless.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "engine creation config (.toml, .yaml or .json)")
	f.StringVar(&opts.runtimePath, "runtime", "", "runtime config file applied after creation")
	f.BoolVarP(&opts.watch, "watch", "w", false, "reload the runtime config file when it changes")
	f.IntVarP(&opts.frames, "frames", "n", 300, "number of frames to render (0 runs until interrupted)")
	f.StringVar(&opts.headless, "headless", "", "render to stdout at COLSxROWS without a terminal")
	f.BoolVar(&opts.metrics, "metrics", false, "print metrics JSON to stderr when done")
	f.BoolVar(&opts.altScreen, "alt-screen", true, "use the alternate screen")
	return cmd
}

func parseExtent(s string) (cols, rows int, err error) {
	c, r, ok := strings.Cut(strings.ToLower(s), "x")
	if ok {
		cols, err = strconv.Atoi(c)
		if err == nil {
			rows, err = strconv.Atoi(r)
		}
	}
	if !ok || err != nil || cols <= 0 || rows <= 0 {
		return 0, 0, fmt.Errorf("invalid extent %q, want COLSxROWS: %w", s, core.ErrInvalidArgument)
	}
	return cols, rows, nil
}

func runRender(cmd *cobra.Command, path string, opts renderOptions) error {
	log := logging.Default().WithComponent("render")
	if opts.watch && opts.runtimePath == "" {
		return errors.New("--watch needs --runtime")
	}

	cfg := config.DefaultCreate()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(opts.configPath); err != nil {
			return err
		}
	}
	if opts.runtimePath != "" {
		rt, err := config.LoadRuntimeFile(opts.runtimePath, cfg.Runtime)
		if err != nil {
			return err
		}
		cfg.Runtime = rt
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	scr, err := script.Load(path, string(src), script.WithLogger(log))
	if err != nil {
		return err
	}
	defer scr.Close()

	var (
		engineOpts []engine.Option
		term       backend.Backend
		headless   = opts.headless != ""
	)
	if headless {
		cols, rows, err := parseExtent(opts.headless)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, engine.WithSize(cols, rows), engine.WithCapabilities(core.DefaultCapabilities()))
	} else {
		caps, err := backend.Probe()
		if err != nil {
			return err
		}
		term = backend.NewTerminal(os.Stdin, os.Stdout, caps, backend.Features{
			Mouse:          cfg.Plat.EnableMouse,
			BracketedPaste: cfg.Plat.EnableBracketedPaste,
			FocusEvents:    cfg.Plat.EnableFocusEvents,
			AltScreen:      opts.altScreen,
		})
		engineOpts = append(engineOpts, engine.WithBackend(term))
	}

	reg := handle.NewRegistry(handle.WithLogger(logging.Default()))
	ex := handle.NewExecutor("render")
	h, err := handle.Open(reg, ex, cfg, engineOpts...)
	if err != nil {
		return err
	}
	defer h.Close()

	var (
		updates    <-chan config.Runtime
		reloadErrs <-chan error
	)
	if opts.watch {
		w, err := config.NewWatcher(opts.runtimePath, cfg.Runtime)
		if err != nil {
			return err
		}
		defer w.Close()
		updates, reloadErrs = w.Updates(), w.Errors()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := renderLoop{
		h:        h,
		scr:      scr,
		term:     term,
		log:      log,
		interval: frameInterval(cfg.Runtime),
	}
	if headless {
		r.out = cmd.OutOrStdout().Write
	}
	err = r.run(ctx, opts.frames, updates, reloadErrs)

	if opts.metrics {
		snap, merr := h.Metrics()
		if merr == nil {
			data, jerr := snap.JSON()
			if jerr == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), string(data))
			}
		}
	}
	return err
}

func frameInterval(rt config.Runtime) time.Duration {
	if rt.TargetFPS == 0 {
		return 0
	}
	return time.Second / time.Duration(rt.TargetFPS)
}

type renderLoop struct {
	h        *handle.Handle
	scr      *script.Script
	term     backend.Backend
	log      *logging.Logger
	interval time.Duration
	ticker   *time.Ticker

	// cols and rows are the extent last handed to the engine.
	cols, rows int

	// out receives presented bytes when there is no terminal backend.
	out func([]byte) (int, error)
}

func (r *renderLoop) run(ctx context.Context, frames int, updates <-chan config.Runtime, reloadErrs <-chan error) error {
	var tick <-chan time.Time
	if r.term != nil && r.interval > 0 {
		r.ticker = time.NewTicker(r.interval)
		defer r.ticker.Stop()
		tick = r.ticker.C
		r.cols, r.rows, _ = r.term.Size()
	}

	for n := 0; frames <= 0 || n < frames; n++ {
		if tick != nil {
		wait:
			for {
				select {
				case <-ctx.Done():
					return nil
				case rt := <-updates:
					r.applyConfig(rt)
				case err := <-reloadErrs:
					r.log.Warn("config reload failed", "err", err)
				case <-tick:
					break wait
				}
			}
		} else {
			select {
			case <-ctx.Done():
				return nil
			case rt := <-updates:
				r.applyConfig(rt)
			case err := <-reloadErrs:
				r.log.Warn("config reload failed", "err", err)
			default:
			}
		}

		if err := r.frame(n); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderLoop) applyConfig(rt config.Runtime) {
	if err := r.h.SetConfig(rt); err != nil {
		r.log.Warn("config rejected", "err", err)
		return
	}
	r.log.Info("config reloaded", "fps", rt.TargetFPS, "tab_width", rt.TabWidth)
	r.interval = frameInterval(rt)
	if r.ticker != nil && r.interval > 0 {
		r.ticker.Reset(r.interval)
	}
}

func (r *renderLoop) frame(n int) error {
	if r.term != nil {
		if cols, rows, err := r.term.Size(); err == nil && (cols != r.cols || rows != r.rows) {
			if err := r.h.Resize(cols, rows); err != nil {
				return err
			}
			r.cols, r.rows = cols, rows
		}
	}

	if err := r.h.SubmitPaint(r.scr.Paint(n)); err != nil {
		return err
	}
	out, err := r.h.Present()
	if err != nil {
		if core.CodeOf(err) == core.CodeLimitExceeded {
			r.log.Warn("frame over output limit", "frame", n, "err", err)
			return nil
		}
		return err
	}
	if r.out != nil && len(out) > 0 {
		if _, err := r.out(out); err != nil {
			return err
		}
	}

	evs, err := r.h.PollEvents(0)
	if err != nil {
		return err
	}
	for _, ev := range evs {
		r.log.Debug("event", "kind", ev.Kind.String(), "tag", ev.Tag, "cols", ev.Cols, "rows", ev.Rows)
	}
	return nil
}
