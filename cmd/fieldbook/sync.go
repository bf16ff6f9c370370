package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aretw0/fieldbook"
	storeevents "github.com/aretw0/fieldbook/pkg/adapters/lifecycle"
	"github.com/aretw0/fieldbook/pkg/core"
	"github.com/aretw0/fieldbook/pkg/sync"
	"github.com/aretw0/fieldbook/pkg/sync/scheduler"
)

var (
	syncID      string
	syncWatch   bool
	syncMetrics string
	syncJSON    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize records with the central server",
	Long: `Synchronize records with the central server.

Verified users push pending records and pull new ones; unverified users only
push their own records. With --id a single record of --kind is reconciled.
With --watch the command keeps running, syncing every sync.interval and
whenever the store changes on disk.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.RequireUser(); err != nil {
			fatal("No user", err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := openStore(ctx)
		defer fieldbook.Close(store)

		var opts []sync.Option
		if syncMetrics != "" {
			metrics := sync.NewMetrics()
			if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
				fatal("Failed to register metrics", err)
			}
			opts = append(opts, sync.WithMetrics(metrics))
			serveMetrics(ctx, syncMetrics)
		}
		engine := newEngine(store, opts...)

		if syncWatch {
			watch(ctx, engine, store)
			return
		}

		var (
			res *sync.Result
			err error
		)
		if syncID != "" {
			res, err = engine.RunSingle(ctx, selectedKind(), syncID)
		} else {
			res, err = engine.Run(ctx)
		}
		if res != nil {
			printResult(res)
		}
		if err != nil {
			fatal("Sync failed", err)
		}
		if len(res.Failed) > 0 {
			os.Exit(2)
		}
	},
}

func printResult(res *sync.Result) {
	if syncJSON {
		printJSON(res.Summary())
		return
	}
	fmt.Printf("%s sync %s in %s: %d pushed, %d pulled, %d conflicts, %d failed\n",
		res.Strategy, res.State, res.Duration().Round(time.Millisecond),
		len(res.Succeeded), len(res.Pulled), len(res.Conflicts), len(res.Failed))
	for _, f := range res.Failed {
		fmt.Printf("  failed %s\n", f)
	}
	for _, c := range res.Conflicts {
		fmt.Printf("  conflict %s\n", c)
	}
}

// watch runs the scheduler until ctx ends. Store changes made outside the
// process trigger a run when the backend can report them.
func watch(ctx context.Context, engine *sync.Engine, store core.Store) {
	sched := scheduler.New(engine, cfg.Sync.Interval, scheduler.WithLogger(slog.Default()))
	sched.Start(ctx)
	defer sched.Stop()
	sched.Trigger()

	if w, ok := store.(core.Watchable); ok {
		events, err := w.Watch(ctx)
		if err != nil {
			fatal("Failed to watch store", err)
		}
		src := storeevents.NewSource(events)
		if err := src.Start(ctx); err != nil {
			fatal("Failed to watch store", err)
		}
		go func() {
			for e := range src.Events() {
				slog.Debug("store changed", "event", e.String())
				sched.Trigger()
			}
		}()
	} else if cfg.Sync.Interval == 0 {
		slog.Warn("store cannot be watched and sync.interval is 0; only the initial run will happen")
	}

	<-ctx.Done()
	if res, _ := sched.LastResult(); res != nil {
		printResult(res)
	}
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	slog.Info("serving metrics", "addr", addr)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending records per kind",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cfg.RequireUser(); err != nil {
			fatal("No user", err)
		}
		ctx := context.Background()
		store := openStore(ctx)
		defer fieldbook.Close(store)

		tier := core.Resolve(core.User(currentUser()))
		fmt.Printf("user %s (%s)\n", cfg.User.Name, tier)
		for _, k := range cfg.Sync.Kinds {
			repo, err := fieldbook.NewRepository(store, core.Kind(k), cfg.User.Name)
			if err != nil {
				fatal("Failed to open repository", err)
			}
			total, err := repo.Size(ctx)
			if err != nil {
				fatal("Failed to count records", err)
			}
			pending, err := core.Collect(repo.ToBeSynced(ctx))
			if err != nil {
				fatal("Failed to list pending records", err)
			}
			fmt.Printf("  %-10s %d records, %d pending\n", k, total, len(pending))
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)

	syncCmd.Flags().StringVar(&syncID, "id", "", "Reconcile only this record of --kind")
	syncCmd.Flags().BoolVarP(&syncWatch, "watch", "w", false, "Keep syncing on interval and on store changes")
	syncCmd.Flags().StringVar(&syncMetrics, "metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "Print the result as JSON")
}
