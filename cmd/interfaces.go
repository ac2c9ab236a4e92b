package cmd

import (
	"context"
	"io"
	"time"

	"github.com/anicoll/vevor-integration/internal/pkg/model"
	"github.com/anicoll/vevor-integration/internal/pkg/poller"
	"github.com/anicoll/vevor-integration/internal/pkg/publisher"
)

// RegisterSource is what cmd.run expects from the modbus transport.
type RegisterSource interface {
	poller.RegisterSource
	io.Closer
}

// HistoryStore is the postgres sink plus what the cleanup job and status server need.
type HistoryStore interface {
	publisher.Sink
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
	GetLatestProperties(ctx context.Context) (model.Properties, error)
	GetProperties(ctx context.Context, uniqueID string, from, to *time.Time) (model.Properties, error)
}
