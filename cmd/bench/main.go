package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/fieldbook"
	"github.com/aretw0/fieldbook/pkg/core"
)

func main() {
	count := flag.Int("count", 1000, "Number of records to generate per adapter")
	keep := flag.Bool("keep", false, "Keep the benchmark stores after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "fieldbook_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	adapters := []struct {
		name string
		path string
	}{
		{"memory", ""},
		{"sqlite", filepath.Join(benchDir, "bench.db")},
		{"fs", filepath.Join(benchDir, "records")},
	}

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d records):\n", *count)
	for _, a := range adapters {
		write, cold, warm, err := run(ctx, logger, a.name, a.path, *count)
		if err != nil {
			panic(fmt.Errorf("%s: %w", a.name, err))
		}
		fmt.Printf("  %-7s write: %-12v scan cold: %-12v scan warm: %v\n", a.name, write, cold, warm)
	}
	fmt.Printf("--------------------------------------------------\n")
}

// run writes count records, then scans the pending set twice: once on the
// writing store and once on a reopened one, which exercises the fs index.
func run(ctx context.Context, logger *slog.Logger, adapter, path string, count int) (write, cold, warm time.Duration, err error) {
	open := func() (core.Store, error) {
		return fieldbook.Open(ctx,
			fieldbook.WithAdapter(adapter),
			fieldbook.WithPath(path),
			fieldbook.WithLogger(logger),
			fieldbook.WithDevSafety(false),
		)
	}

	store, err := open()
	if err != nil {
		return 0, 0, 0, err
	}
	repo, err := core.NewRepository(store, core.KindChild, "bench")
	if err != nil {
		return 0, 0, 0, err
	}

	start := time.Now()
	for i := 0; i < count; i++ {
		rec := core.NewRecord(core.KindChild, core.Fields{
			"name": fmt.Sprintf("Child %d", i),
			"date": time.Now().Format("2006-01-02"),
			"tags": []string{"benchmark", "test"},
		})
		if _, err := repo.Create(ctx, rec); err != nil {
			return 0, 0, 0, err
		}
	}
	write = time.Since(start)

	if cold, err = scan(ctx, repo, count); err != nil {
		return
	}

	if adapter != "memory" {
		if err = fieldbook.Close(store); err != nil {
			return
		}
		if store, err = open(); err != nil {
			return
		}
		if repo, err = core.NewRepository(store, core.KindChild, "bench"); err != nil {
			return
		}
	}
	defer fieldbook.Close(store)
	warm, err = scan(ctx, repo, count)
	return
}

func scan(ctx context.Context, repo *core.Repository, want int) (time.Duration, error) {
	start := time.Now()
	recs, err := core.Collect(repo.ToBeSynced(ctx))
	if err != nil {
		return 0, err
	}
	if len(recs) != want {
		return 0, fmt.Errorf("scanned %d records, want %d", len(recs), want)
	}
	return time.Since(start), nil
}
