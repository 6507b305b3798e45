package streams

import (
	"context"

	"github.com/admetric/stacksync/internal/integrations/warehouse"
	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/reugn/go-streams"
	"github.com/rs/zerolog"
)

var _ streams.Sink = (*WarehouseSink)(nil)

// WarehouseSink consumes batches of flattened rows and streams them into the
// staging table. The first insert error is kept and stops further loading.
type WarehouseSink struct {
	Logger *zerolog.Logger
	Loader *warehouse.AdsLoader

	ctx   context.Context
	in    chan any
	done  chan struct{}
	count int
	err   error
}

func NewWarehouseSink(ctx context.Context, loader *warehouse.AdsLoader) *WarehouseSink {
	ws := &WarehouseSink{
		Logger: logging.NewLogger("info", "component", "WarehouseSink"),
		Loader: loader,
		ctx:    ctx,
		in:     make(chan any),
		done:   make(chan struct{}),
	}
	go ws.process()
	return ws
}

func (ws *WarehouseSink) process() {
	defer close(ws.done)
	for elem := range ws.in {
		batch, ok := elem.([]model.AdPerformanceRecord)
		if !ok {
			ws.Logger.Error().Msg("Received non-record batch item")
			continue
		}
		if ws.err != nil {
			continue // drain remaining batches after a failed insert
		}
		n, err := ws.Loader.LoadRecords(ws.ctx, batch)
		ws.count += n
		if err != nil {
			ws.Logger.Error().Err(err).Msg("Failed to load record batch")
			ws.err = err
		}
	}
}

// Count returns the number of rows inserted so far.
func (ws *WarehouseSink) Count() int {
	return ws.count
}

// Err returns the first insert error, if any.
func (ws *WarehouseSink) Err() error {
	return ws.err
}

// In returns the input channel of the WarehouseSink connector.
func (ws *WarehouseSink) In() chan<- any {
	return ws.in
}

// AwaitCompletion blocks until the WarehouseSink has processed all received data.
func (ws *WarehouseSink) AwaitCompletion() {
	<-ws.done
}
