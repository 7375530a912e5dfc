// Package app wires every component package (index, contextstore,
// metadatastore, loader, fetcher, query) into the App a command or HTTP
// handler needs. It is shared by internal/cli and internal/api so
// neither imports the other.
package app

import (
	"context"
	"fmt"

	"github.com/nishad/redbiom/internal/ambiguity"
	"github.com/nishad/redbiom/internal/config"
	"github.com/nishad/redbiom/internal/contextstore"
	"github.com/nishad/redbiom/internal/fetcher"
	"github.com/nishad/redbiom/internal/index"
	"github.com/nishad/redbiom/internal/kv"
	"github.com/nishad/redbiom/internal/loader"
	"github.com/nishad/redbiom/internal/metadatastore"
	"github.com/nishad/redbiom/internal/query"
	"github.com/nishad/redbiom/internal/xlog"
)

// App wires every component package into the set of stores a command
// needs, opening the backing KV store once per process invocation.
type App struct {
	KV       kv.Client
	Index    *index.Manager
	Contexts *contextstore.Store
	Metadata *metadatastore.Store
	Loader   *loader.Loader
	Fetcher  *fetcher.Fetcher
	Query    *query.Engine
	Log      *xlog.Logger
}

// NewApp opens the KV store at cfg.KV.Path and constructs every
// component on top of it.
func NewApp(cfg *config.Config, log *xlog.Logger) (*App, error) {
	if log == nil {
		log = xlog.Default()
	}
	maxInFlight := int64(cfg.KV.MaxInFlight)
	if maxInFlight <= 0 {
		maxInFlight = 8
	}
	client, err := kv.Open(cfg.KV.Path, maxInFlight)
	if err != nil {
		return nil, fmt.Errorf("open kv store %q: %w", cfg.KV.Path, err)
	}

	idx, err := index.New(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("construct index manager: %w", err)
	}

	ctxs := contextstore.NewWithChunkSize(client, idx, cfg.Loader.MaxScriptArgs)
	meta := metadatastore.New(client)
	ld := loader.New(client, idx, ctxs, meta, log)
	ft := fetcher.New(client, idx, ctxs)
	qe := query.NewEngine(meta)

	return &App{
		KV:       client,
		Index:    idx,
		Contexts: ctxs,
		Metadata: meta,
		Loader:   ld,
		Fetcher:  ft,
		Query:    qe,
		Log:      log,
	}, nil
}

func (a *App) Close() error {
	return a.KV.Close()
}

// SampleResolver builds an ambiguity.Resolver over a context's
// represented sample axis, the id universe search-samples/fetch-samples
// reconcile caller-supplied ids against.
func (a *App) SampleResolver(context_ string) *ambiguity.Resolver {
	return ambiguity.New(func(ctx context.Context) ([]string, error) {
		return a.Contexts.SamplesInContext(ctx, context_)
	})
}
