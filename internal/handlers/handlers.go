package handlers

import (
	"context"
	"time"

	"media-porter/internal/downloader"
	"media-porter/internal/streaming"
)

// Fetcher runs one download. Implemented by *downloader.Downloader.
type Fetcher interface {
	Fetch(ctx context.Context, req downloader.Request) (*downloader.Result, error)
}

// Pinger reports whether the ledger is reachable. Implemented by *database.Database.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	fetcher      Fetcher
	ledger       Pinger
	streamConfig streaming.TimeoutWriterConfig
	startTime    time.Time
}

func New(fetcher Fetcher, ledger Pinger) *Handlers {
	return &Handlers{
		fetcher:      fetcher,
		ledger:       ledger,
		streamConfig: streaming.DefaultTimeoutWriterConfig(),
		startTime:    time.Now(),
	}
}
