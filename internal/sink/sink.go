package sink

import (
	"context"
	"io"

	"github.com/JonMunkholm/encounters/internal/core"
)

// Counts reports how many documents a store holds.
type Counts struct {
	Target    string `json:"target"`
	Estimated int64  `json:"estimated"`
	Exact     int64  `json:"exact"`
}

// Store is a document sink that can also be inspected after a load.
type Store interface {
	core.DocumentSink
	Ping(ctx context.Context) error
	Count(ctx context.Context) (Counts, error)
	Export(ctx context.Context, w io.Writer, batchSize int) (int64, error)
	Close(ctx context.Context) error
}

var (
	_ Store = (*Mongo)(nil)
	_ Store = (*Postgres)(nil)

	_ core.DocumentSink = (*CSV)(nil)
	_ core.DocumentSink = (*Discard)(nil)
)
