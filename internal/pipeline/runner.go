package pipeline

import (
	"context"
	"fmt"
	"time"

	"bgzfiltra/internal/bugzilla"
	"bgzfiltra/internal/metrics"
	"bgzfiltra/internal/stats"

	"github.com/rs/zerolog/log"
)

// RecordSource yields the records of a product and whether they came from a snapshot.
type RecordSource interface {
	Lookup(ctx context.Context, product string, useCache bool) ([]bugzilla.Record, bool, error)
}

// RowWriter is the time-series sink.
type RowWriter interface {
	SetupTables(ctx context.Context) error
	Insert(ctx context.Context, d stats.Dimension, row stats.Row, ts time.Time) error
}

// Options configure a Runner.
type Options struct {
	Products []string
	UseCache bool
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Runner executes one extract-aggregate-persist pass over all products.
type Runner struct {
	source RecordSource
	sink   RowWriter
	opts   Options
}

// NewRunner wires a source and a sink.
func NewRunner(source RecordSource, sink RowWriter, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{source: source, sink: sink, opts: opts}
}

// Run processes products one after another. The first error aborts the
// whole run; rows already written stay committed.
func (r *Runner) Run(ctx context.Context) (err error) {
	started := r.opts.Now()
	defer func() {
		r.opts.Metrics.ObserveRun(err, time.Since(started), r.opts.Now())
	}()

	if err := r.sink.SetupTables(ctx); err != nil {
		return err
	}

	ts := r.opts.Now()
	for _, product := range r.opts.Products {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.runProduct(ctx, product, ts); err != nil {
			return fmt.Errorf("product %q: %w", product, err)
		}
	}

	log.Info().Int("products", len(r.opts.Products)).Dur("took", time.Since(started)).Msg("Run complete")
	return nil
}

func (r *Runner) runProduct(ctx context.Context, product string, ts time.Time) error {
	log.Info().Str("product", product).Bool("useCache", r.opts.UseCache).Msg("Processing product")

	records, cached, err := r.source.Lookup(ctx, product, r.opts.UseCache)
	if err != nil {
		return err
	}
	r.opts.Metrics.ObserveRecords(product, cached, len(records))
	log.Info().
		Str("product", product).
		Int("count", len(records)).
		Bool("cached", cached).
		Int("needinfo", stats.CountNeedinfo(records)).
		Msg("Found bugs with our query")

	views := stats.Aggregate(product, records)
	written := 0
	for _, d := range stats.Dimensions {
		for _, row := range views[d] {
			if err := r.sink.Insert(ctx, d, row, ts); err != nil {
				return err
			}
			r.opts.Metrics.ObserveRow(string(d))
			written++
		}
	}

	log.Debug().Str("product", product).Int("rows", written).Msg("Aggregates written")
	return nil
}
