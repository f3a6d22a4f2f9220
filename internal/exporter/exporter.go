// Package exporter turns the handle reports stored under one prefix into a
// local handle list.
package exporter

import (
	"context"
	"log/slog"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/GreedyKomodoDragon/handle-exporter/internal/handles"
	"github.com/GreedyKomodoDragon/handle-exporter/internal/metrics"
	"github.com/GreedyKomodoDragon/handle-exporter/internal/objectstore"
)

// Index receives every written record in addition to the output file
type Index interface {
	// Reset clears records left by a previous run
	Reset(ctx context.Context) error
	// Add stores one record
	Add(ctx context.Context, rec handles.Record) error
}

// Summary describes a finished run
type Summary struct {
	Bucket  string
	Prefix  string
	Output  string
	Listed  int
	Written int
	Skipped int

	// SkipErrors aggregates the per-report errors of skipped reports, nil
	// when nothing was skipped
	SkipErrors utilerrors.Aggregate
}

// Exporter coordinates the object store, the output file and the optional
// index and metrics
type Exporter struct {
	store   objectstore.ObjectStore
	cfg     Config
	index   Index
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// NewExporter creates a new exporter reading from store
func NewExporter(store objectstore.ObjectStore, cfg Config, logger *slog.Logger) (*Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Exporter{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// WithIndex makes the exporter also add every record to idx
func (e *Exporter) WithIndex(idx Index) *Exporter {
	e.index = idx
	return e
}

// WithMetrics makes the exporter count its work in rec
func (e *Exporter) WithMetrics(rec *metrics.Recorder) *Exporter {
	e.metrics = rec
	return e
}

// Config returns the validated configuration
func (e *Exporter) Config() Config {
	return e.cfg
}

// Export writes one line per report object under the prefix for reportTime.
//
// Objects are processed one at a time in listing order. The output file is
// truncated before listing starts and each line is on disk before the next
// object is fetched, so a failed run leaves every line written so far.
func (e *Exporter) Export(ctx context.Context, reportTime string) (*Summary, error) {
	started := now()
	prefix := e.cfg.Prefix(reportTime)

	summary := &Summary{
		Bucket: e.store.GetBucketName(),
		Prefix: prefix,
		Output: e.cfg.OutputPath,
	}

	err := e.export(ctx, prefix, summary)

	if e.metrics != nil {
		e.metrics.Finish(err == nil, now().Sub(started))
	}

	if err != nil {
		return summary, err
	}

	e.logger.Info("Handle export completed",
		"bucket", summary.Bucket,
		"prefix", summary.Prefix,
		"output", summary.Output,
		"listed", summary.Listed,
		"written", summary.Written,
		"skipped", summary.Skipped,
	)

	return summary, nil
}

func (e *Exporter) export(ctx context.Context, prefix string, summary *Summary) error {
	writer, err := handles.Create(e.cfg.OutputPath)
	if err != nil {
		return &Error{Kind: KindOutput, Err: err}
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			e.logger.Warn("Failed to close output file", "output", e.cfg.OutputPath, "error", cerr)
		}
	}()

	if e.index != nil {
		if err := e.index.Reset(ctx); err != nil {
			return &Error{Kind: KindOutput, Err: err}
		}
	}

	e.logger.Info("Listing handle reports",
		"bucket", summary.Bucket,
		"prefix", prefix,
		"output", e.cfg.OutputPath,
	)

	var skipped []error

	for obj, err := range e.store.ListObjects(ctx, prefix) {
		if err != nil {
			return &Error{Kind: KindAccess, Err: err}
		}
		summary.Listed++
		if e.metrics != nil {
			e.metrics.ObjectListed()
		}

		written, perr := e.process(ctx, obj, writer)
		if written {
			summary.Written++
		}
		if perr == nil {
			continue
		}

		if !IsMalformed(perr) || e.cfg.OnMalformed != Skip {
			return perr
		}

		kind := KindOf(perr).String()
		e.logger.Warn("Skipping malformed handle report",
			"key", obj.Key,
			"kind", kind,
			"error", perr,
		)
		if e.metrics != nil {
			e.metrics.RecordSkipped(kind)
		}
		skipped = append(skipped, perr)
		summary.Skipped++
	}

	summary.SkipErrors = utilerrors.NewAggregate(skipped)
	return nil
}

// process fetches, parses and writes a single report. It reports true once
// the line is in the output file, even if indexing it failed afterwards.
func (e *Exporter) process(ctx context.Context, obj objectstore.ObjectInfo, writer *handles.Writer) (bool, error) {
	body, err := e.store.GetObject(ctx, obj.Key)
	if err != nil {
		return false, &Error{Kind: KindAccess, Key: obj.Key, Err: err}
	}
	if e.metrics != nil {
		e.metrics.BytesFetched(len(body))
	}

	rec, err := handles.Parse(obj.Key, body)
	if err != nil {
		return false, &Error{Kind: parseErrorKind(err), Key: obj.Key, Err: err}
	}

	if handles.NeedsQuoting(rec) {
		e.logger.Warn("Handle record contains a separator and will be quoted",
			"key", obj.Key,
			"handle", rec.Handle,
			"identifier", rec.Identifier,
		)
	}

	if err := writer.Write(rec); err != nil {
		return false, &Error{Kind: KindOutput, Key: obj.Key, Err: err}
	}
	if e.metrics != nil {
		e.metrics.RecordWritten()
	}

	if e.index != nil {
		if err := e.index.Add(ctx, rec); err != nil {
			return true, &Error{Kind: KindOutput, Key: obj.Key, Err: err}
		}
	}

	e.logger.Debug("Exported handle",
		"key", obj.Key,
		"handle", rec.Handle,
		"identifier", rec.Identifier,
	)

	return true, nil
}

var now = time.Now
