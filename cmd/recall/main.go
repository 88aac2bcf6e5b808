// Command recall is the CLI front end for the Recall memory engine. It
// assembles the full engine from environment configuration for each
// invocation, runs one operation and shuts down cleanly, flushing any
// pending persistence.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/scrypster/recall/internal/config"
	"github.com/scrypster/recall/internal/embedding"
	"github.com/scrypster/recall/internal/index"
	"github.com/scrypster/recall/internal/index/postgres"
	"github.com/scrypster/recall/internal/index/sqlite"
	"github.com/scrypster/recall/internal/lifecycle"
	"github.com/scrypster/recall/internal/service"
	"github.com/scrypster/recall/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:           "recall",
		Short:         "Persistent retrieval-oriented memory for conversational assistants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newPutCmd(),
		newSearchCmd(),
		newGetCmd(),
		newForgetCmd(),
		newStatsCmd(),
		newSweepCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// engine bundles the assembled components plus their teardown.
type engine struct {
	svc     *service.Service
	store   *store.Store
	scoring atomic.Pointer[config.ScoringConfig]

	watcher  *config.ScoringWatcher
	notifier *index.AsyncNotifier
}

// newEngine wires the full stack from environment configuration.
func newEngine() (*engine, error) {
	cfg := config.LoadConfig()

	scoring := config.DefaultScoringConfig()
	if cfg.Store.ScoringPath != "" {
		loaded, err := config.LoadScoringConfig(cfg.Store.ScoringPath)
		if err != nil {
			return nil, err
		}
		scoring = loaded
	}

	e := &engine{}
	e.scoring.Store(scoring)

	provider, err := embedding.NewFromConfig(cfg.Embedding)
	if err != nil {
		return nil, err
	}

	var searcher service.KeywordSearcher
	var opts []store.Option
	switch cfg.Index.Backend {
	case "sqlite":
		path := cfg.Index.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.Store.DataPath, "keyword.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		idx, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		e.notifier = index.NewAsyncNotifier(idx, cfg.Index.QueueSize)
		searcher = idx
		opts = append(opts, store.WithKeywordNotifier(e.notifier))
	case "postgres":
		idx, err := postgres.Open(cfg.Index.PostgresDSN)
		if err != nil {
			return nil, err
		}
		e.notifier = index.NewAsyncNotifier(idx, cfg.Index.QueueSize)
		searcher = idx
		opts = append(opts, store.WithKeywordNotifier(e.notifier))
	case "none":
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}

	st, err := store.New(cfg.Store, scoring, provider, opts...)
	if err != nil {
		return nil, err
	}
	e.store = st

	if cfg.Store.ScoringPath != "" {
		w, err := config.WatchScoring(cfg.Store.ScoringPath, func(c *config.ScoringConfig) {
			e.scoring.Store(c)
			st.SetScoring(c)
		})
		if err != nil {
			log.Printf("WARNING: scoring config watch disabled: %v", err)
		} else {
			e.watcher = w
		}
	}

	mgr := lifecycle.New(st, func() config.LifecycleRules {
		return e.scoring.Load().Lifecycle
	})

	svc, err := service.New(service.Deps{
		Store:     st,
		Keywords:  searcher,
		Lifecycle: mgr,
		FusionWeights: func() (float64, float64, float64) {
			f := e.scoring.Load().Fusion
			return f.Heuristic, f.Keyword, f.PinnedBoost
		},
	})
	if err != nil {
		return nil, err
	}
	e.svc = svc
	return e, nil
}

// close tears the engine down, flushing pending state.
func (e *engine) close() {
	if e.watcher != nil {
		e.watcher.Close()
	}
	if err := e.svc.Close(); err != nil {
		log.Printf("WARNING: shutdown: %v", err)
	}
	if e.notifier != nil {
		if err := e.notifier.Close(); err != nil {
			log.Printf("WARNING: index shutdown: %v", err)
		}
	}
}
