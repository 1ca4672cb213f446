package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/23skdu/longbow-testfloat/internal/arrow_client"
	"github.com/23skdu/longbow-testfloat/internal/config"
	"github.com/23skdu/longbow-testfloat/internal/logger"
	"github.com/23skdu/longbow-testfloat/internal/monitoring"
	"github.com/23skdu/longbow-testfloat/internal/report"
	"github.com/23skdu/longbow-testfloat/internal/verify"
)

var errFound = errors.New("errors found")

type runFlags struct {
	configPath string
	cfg        config.Config
}

func newRunCmd() *cobra.Command {
	f := &runFlags{cfg: config.Default()}
	cmd := &cobra.Command{
		Use:   "run [operation...]",
		Short: "Verify operations against the reference",
		Long: `Verify each named operation (all of them when none are named) in every
selected rounding mode. The command exits non-zero when any error is found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.resolve(cmd, args)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fl.StringVar(&f.cfg.Candidate, "candidate", f.cfg.Candidate, "implementation under test (native, or reference to self-test the harness)")
	fl.IntVarP(&f.cfg.Level, "level", "l", f.cfg.Level, "test level (1 or 2)")
	fl.Uint64Var(&f.cfg.Seed, "seed", f.cfg.Seed, "seed for random cases")
	fl.BoolVar(&f.cfg.Forever, "forever", f.cfg.Forever, "generate random cases until interrupted")
	fl.BoolVar(&f.cfg.CheckNaNs, "check-nans", f.cfg.CheckNaNs, "require NaN results to match bit for bit")
	fl.Int64VarP(&f.cfg.MaxErrors, "errors", "e", f.cfg.MaxErrors, "stop each run after this many errors (0 for no limit)")
	fl.StringSliceVarP(&f.cfg.RoundingModes, "rounding", "r", f.cfg.RoundingModes, "rounding modes (near_even, minMag, min, max, near_maxMag)")
	fl.StringVar(&f.cfg.Tininess, "tininess", f.cfg.Tininess, "tininess detection of the reference (before, after)")
	fl.BoolVar(&f.cfg.Exact, "exact", f.cfg.Exact, "roundToInt raises inexact")
	fl.Int64Var(&f.cfg.Window, "window", f.cfg.Window, "cases between progress reports")
	fl.IntVarP(&f.cfg.Parallel, "parallel", "p", f.cfg.Parallel, "runs executed concurrently")
	fl.StringVar(&f.cfg.LogLevel, "log-level", f.cfg.LogLevel, "log level (debug, info, warn, error)")
	fl.StringVar(&f.cfg.LogFormat, "log-format", f.cfg.LogFormat, "log format (console, json)")
	fl.StringVar(&f.cfg.MetricsAddr, "metrics-addr", f.cfg.MetricsAddr, "address for /health, /status and /metrics")
	fl.StringVar(&f.cfg.ArrowOut, "arrow-out", f.cfg.ArrowOut, "write error records to this Arrow IPC file")
	fl.StringVar(&f.cfg.FlightAddr, "flight-addr", f.cfg.FlightAddr, "upload error records to this Arrow Flight server")
	return cmd
}

// flagFields maps flags to their config keys so explicit flags win over a
// config file.
var flagFields = map[string]func(dst, src *config.Config){
	"candidate":    func(d, s *config.Config) { d.Candidate = s.Candidate },
	"level":        func(d, s *config.Config) { d.Level = s.Level },
	"seed":         func(d, s *config.Config) { d.Seed = s.Seed },
	"forever":      func(d, s *config.Config) { d.Forever = s.Forever },
	"check-nans":   func(d, s *config.Config) { d.CheckNaNs = s.CheckNaNs },
	"errors":       func(d, s *config.Config) { d.MaxErrors = s.MaxErrors },
	"rounding":     func(d, s *config.Config) { d.RoundingModes = s.RoundingModes },
	"tininess":     func(d, s *config.Config) { d.Tininess = s.Tininess },
	"exact":        func(d, s *config.Config) { d.Exact = s.Exact },
	"window":       func(d, s *config.Config) { d.Window = s.Window },
	"parallel":     func(d, s *config.Config) { d.Parallel = s.Parallel },
	"log-level":    func(d, s *config.Config) { d.LogLevel = s.LogLevel },
	"log-format":   func(d, s *config.Config) { d.LogFormat = s.LogFormat },
	"metrics-addr": func(d, s *config.Config) { d.MetricsAddr = s.MetricsAddr },
	"arrow-out":    func(d, s *config.Config) { d.ArrowOut = s.ArrowOut },
	"flight-addr":  func(d, s *config.Config) { d.FlightAddr = s.FlightAddr },
}

func (f *runFlags) resolve(cmd *cobra.Command, args []string) (config.Config, error) {
	cfg := f.cfg
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return cfg, err
		}
		for name, apply := range flagFields {
			if cmd.Flags().Changed(name) {
				apply(&loaded, &f.cfg)
			}
		}
		cfg = loaded
	}
	if len(args) > 0 {
		cfg.Operations = args
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type result struct {
	id    string
	mode  string
	stats verify.Stats
}

func execute(ctx context.Context, out io.Writer, cfg config.Config) error {
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	runs, skipped, err := cfg.Runs()
	if err != nil {
		return err
	}
	for _, s := range skipped {
		logger.Log.Warn("candidate does not support rounding mode, skipping",
			"op", s.Operation, "mode", s.Mode.String(), "candidate", cfg.Candidate)
	}
	if len(runs) == 0 {
		return fmt.Errorf("nothing to run: candidate %s supports none of the selected operations and modes", cfg.Candidate)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hm := monitoring.NewHealthMonitor()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := hm.Start(cfg.MetricsAddr); err != nil {
				logger.Log.Error("Health monitor failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hm.Stop(shutdownCtx)
		}()
	}

	sink, closeSink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		results []result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Parallel)
	for _, r := range runs {
		id := uuid.NewString()
		mode := r.Settings.Mode.String()
		rep := report.Multi{
			report.NewLog(logger.Log, id, mode),
			report.NewMetrics(mode),
			hm.Track(id, mode),
		}
		if sink != nil {
			rep = append(rep, sink.ForRun(id, mode))
		}
		g.Go(func() error {
			stats, err := r.Operation.Run(gctx, cfg.Candidate, r.Settings, rep)
			mu.Lock()
			results = append(results, result{id: id, mode: mode, stats: stats})
			mu.Unlock()
			return err
		})
	}
	runErr := g.Wait()
	sinkErr := closeSink()

	summarize(out, results)

	switch {
	case runErr != nil:
		return runErr
	case sinkErr != nil:
		return sinkErr
	}
	for _, r := range results {
		if r.stats.Errors > 0 {
			return errFound
		}
	}
	return nil
}

// openSink builds the Arrow sink when an IPC file or Flight server is
// configured. The returned close func releases everything it opened.
func openSink(ctx context.Context, cfg config.Config) (*arrow_client.Sink, func() error, error) {
	noop := func() error { return nil }
	if cfg.ArrowOut == "" && cfg.FlightAddr == "" {
		return nil, noop, nil
	}

	var (
		file     *os.File
		w        io.Writer
		client   *arrow_client.FlightClient
		uploader arrow_client.Uploader
	)
	if cfg.ArrowOut != "" {
		f, err := os.Create(cfg.ArrowOut)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create arrow output: %w", err)
		}
		file, w = f, f
	}
	cleanup := func() {
		if file != nil {
			file.Close()
		}
		if client != nil {
			client.Close()
		}
	}
	if cfg.FlightAddr != "" {
		c, err := arrow_client.NewFlightClient(cfg.FlightAddr)
		if err == nil {
			err = c.Connect(ctx)
		}
		if err != nil {
			cleanup()
			return nil, noop, fmt.Errorf("failed to connect to flight server: %w", err)
		}
		client, uploader = c, c
	}

	sink, err := arrow_client.NewSink(ctx, w, uploader)
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return sink, func() error {
		err := sink.Close()
		if file != nil {
			if cerr := file.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
		if client != nil {
			client.Close()
		}
		if err == nil {
			logger.Log.Info("error records written", "rows", sink.Written())
		}
		return err
	}, nil
}

func summarize(out io.Writer, results []result) {
	slices.SortFunc(results, func(a, b result) int {
		return cmp.Or(strings.Compare(a.stats.Op, b.stats.Op), strings.Compare(a.mode, b.mode))
	})

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tMODE\tCASES\tERRORS\tOUTCOME\tRUN")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.stats.Op, r.mode, r.stats.Cases, r.stats.Errors, r.stats.Outcome, r.id)
	}
	w.Flush()
}
