package training

import (
	"Go2NetClassifier/internal/config"
	"Go2NetClassifier/internal/model"
	"Go2NetClassifier/internal/report"
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/go-logr/logr"
)

const createTrainingTable = `
CREATE TABLE IF NOT EXISTS training_rows (
    Timestamp      DateTime,
    TrafficType    LowCardinality(String),
    ForwardPackets Int64,
    ForwardBytes   Int64,
    ReversePackets Int64,
    ReverseBytes   Int64,
    Features       Array(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (TrafficType, Timestamp);
`

// ClickHouseWriter buffers training rows and inserts them into the training_rows
// table in batches.
type ClickHouseWriter struct {
	conn      driver.Conn
	batchSize int
	pending   []pendingRow
	log       logr.Logger
}

type pendingRow struct {
	at  time.Time
	row model.TrainingRow
}

// NewClickHouseWriter connects and ensures the table exists.
func NewClickHouseWriter(cfg config.ClickHouseWriterConfig, log logr.Logger) (*ClickHouseWriter, error) {
	conn, err := report.Connect(cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createTrainingTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log = log.WithName("clickhouse-training")
	log.Info("Connected to ClickHouse and ensured table exists", "table", "training_rows")
	return &ClickHouseWriter{conn: conn, batchSize: cfg.BatchSize, log: log}, nil
}

// WriteRow buffers a row and flushes once the batch is full.
func (w *ClickHouseWriter) WriteRow(row model.TrainingRow) error {
	w.pending = append(w.pending, pendingRow{at: time.Now(), row: row})
	if len(w.pending) < w.batchSize {
		return nil
	}
	return w.flush()
}

func (w *ClickHouseWriter) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO training_rows")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, p := range w.pending {
		if err := batch.Append(trainingValues(p.at, p.row)...); err != nil {
			return fmt.Errorf("failed to append training row to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	w.log.V(1).Info("Wrote training rows", "count", len(w.pending))
	w.pending = w.pending[:0]
	return nil
}

// trainingValues returns the column values of one row in table order.
func trainingValues(at time.Time, row model.TrainingRow) []any {
	return []any{
		at,
		row.Label,
		row.ForwardPackets,
		row.ForwardBytes,
		row.ReversePackets,
		row.ReverseBytes,
		row.Features[:],
	}
}

// Close flushes the remaining rows and closes the connection.
func (w *ClickHouseWriter) Close() error {
	flushErr := w.flush()
	if err := w.conn.Close(); err != nil && flushErr == nil {
		return err
	}
	return flushErr
}
