package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/naka-gawa/tap-mssql/internal/domain"
	"github.com/naka-gawa/tap-mssql/internal/gateway"
)

const defaultSchemaName = "dbo"

// Emitter writes Singer messages and reports the bytes written.
type Emitter interface {
	WriteMessage(msg any) (int, error)
}

// RecordBatcher stores records as batch files.
type RecordBatcher interface {
	Write(ctx context.Context, stream string, records []map[string]any) (string, error)
	Encoding() domain.BatchEncoding
	Size() int
}

// SyncOptions tune a Syncer.
type SyncOptions struct {
	// StartDate bounds date/time keyed incremental streams without a bookmark.
	StartDate time.Time
	// StateFrequency is the number of records between STATE messages.
	StateFrequency int
	// Batcher, when set, moves records into BATCH files.
	Batcher RecordBatcher
	// TestMode reads at most one record per stream and emits no STATE.
	TestMode bool
}

// Syncer is the use case for streaming selected tables as Singer messages.
type Syncer struct {
	source gateway.Source
	out    Emitter
	logger *slog.Logger
	opts   SyncOptions
	now    func() time.Time
}

// NewSyncer creates a new Syncer.
func NewSyncer(source gateway.Source, out Emitter, logger *slog.Logger, opts SyncOptions) *Syncer {
	return &Syncer{
		source: source,
		out:    out,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// Sync streams every selected entry of catalog in order. state is updated in
// place as bookmarks advance.
func (s *Syncer) Sync(ctx context.Context, catalog *domain.Catalog, state *domain.State) error {
	if state == nil {
		state = domain.NewState()
	}
	selected := catalog.Selected()
	s.logger.Info("Starting sync", "streams", len(selected), "test", s.opts.TestMode)
	for _, entry := range selected {
		if err := s.syncStream(ctx, entry, state); err != nil {
			return fmt.Errorf("failed to sync stream %s: %w", entry.TapStreamID, err)
		}
	}
	return nil
}

func (s *Syncer) syncStream(ctx context.Context, entry *domain.CatalogEntry, state *domain.State) error {
	id := entry.TapStreamID
	if entry.Schema == nil {
		return &domain.OpError{Op: "sync.stream", Kind: domain.KindInvalidConfig, Err: fmt.Errorf("stream %s has no schema", id)}
	}
	if entry.TableName == "" {
		return &domain.OpError{Op: "sync.stream", Kind: domain.KindInvalidConfig, Err: fmt.Errorf("stream %s has no table_name", id)}
	}
	method, key, err := entry.Replication()
	if err != nil {
		return err
	}
	columns := entry.SelectedProperties(key)

	var bookmarkProps []string
	if key != "" {
		bookmarkProps = []string{key}
	}
	schemaMsg := domain.NewSchemaMessage(id, entry.Schema.Select(columns), entry.Keys(), bookmarkProps)
	if _, err := s.out.WriteMessage(schemaMsg); err != nil {
		return err
	}

	q := gateway.Query{
		Schema:  entry.SchemaName(),
		Table:   entry.TableName,
		Columns: columns,
	}
	if q.Schema == "" {
		q.Schema = defaultSchemaName
	}
	if method == domain.ReplicationIncremental {
		q.ReplicationKey = key
		q.ReplicationKeyType = entry.SQLDatatype(key)
		q.Start = s.startValue(entry, key, state)
	}
	if s.opts.TestMode {
		q.Limit = 1
	}
	s.logger.Info("Syncing stream", "stream", id, "replication_method", method, "replication_key", key, "start", q.Start)

	batcher := s.opts.Batcher
	if s.opts.TestMode {
		batcher = nil
	}
	var (
		conv    = newRecordConverter(entry, columns)
		metrics = newStreamMetrics(id, s.now())
		pending []map[string]any
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		manifest, err := batcher.Write(ctx, id, pending)
		if err != nil {
			return err
		}
		pending = pending[:0]
		if _, err := s.out.WriteMessage(domain.NewBatchMessage(id, batcher.Encoding(), []string{manifest})); err != nil {
			return err
		}
		return s.emitState(state)
	}

	err = s.source.StreamRows(ctx, q, func(row map[string]any) error {
		record := conv.convert(row)
		if key != "" {
			if v := record[key]; v != nil {
				state.SetBookmark(id, key, v)
			}
		}

		if batcher != nil {
			pending = append(pending, record)
			metrics.observe(0)
			if len(pending) >= batcher.Size() {
				return flush()
			}
			return nil
		}

		n, err := s.out.WriteMessage(domain.NewRecordMessage(id, record, s.now()))
		if err != nil {
			return err
		}
		metrics.observe(n)
		if s.opts.StateFrequency > 0 && metrics.records%s.opts.StateFrequency == 0 {
			return s.emitState(state)
		}
		return nil
	})
	if err == nil && batcher != nil {
		err = flush()
	}
	if err != nil {
		metrics.report(s.logger, s.now(), "failed")
		return err
	}

	if err := s.emitState(state); err != nil {
		return err
	}
	metrics.report(s.logger, s.now(), "succeeded")
	return nil
}

// startValue picks the lower bound of an incremental read: the bookmark when
// it tracks the same key, else start_date for date and datetime keys.
func (s *Syncer) startValue(entry *domain.CatalogEntry, key string, state *domain.State) any {
	if bm := state.Bookmark(entry.TapStreamID); bm != nil && bm.ReplicationKey == key && bm.ReplicationKeyValue != nil {
		return bm.ReplicationKeyValue
	}
	if dt := entry.SQLDatatype(key); !s.opts.StartDate.IsZero() && (gateway.IsDateTime(dt) || gateway.IsDate(dt)) {
		return s.opts.StartDate
	}
	return nil
}

func (s *Syncer) emitState(state *domain.State) error {
	if s.opts.TestMode {
		return nil
	}
	_, err := s.out.WriteMessage(domain.NewStateMessage(state))
	return err
}
