package report

import (
	"Go2NetClassifier/internal/config"
	"Go2NetClassifier/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/go-logr/logr"
)

const createClassificationsTable = `
CREATE TABLE IF NOT EXISTS flow_classifications (
    Timestamp     DateTime,
    FlowID        UInt64,
    SwitchID      String,
    SrcAddr       String,
    DstAddr       String,
    TrafficType   LowCardinality(String),
    ForwardStatus LowCardinality(String),
    ReverseStatus LowCardinality(String),
    Features      Array(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (TrafficType, Timestamp);
`

// ClickHouseReporter stores every reporting cycle in the flow_classifications table.
type ClickHouseReporter struct {
	conn driver.Conn
	log  logr.Logger
}

// Connect opens and pings a ClickHouse connection.
func Connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// NewClickHouseReporter connects and ensures the table exists.
func NewClickHouseReporter(cfg config.ClickHouseConfig, log logr.Logger) (*ClickHouseReporter, error) {
	conn, err := Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	if err := conn.Exec(context.Background(), createClassificationsTable); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log = log.WithName("clickhouse-report")
	log.Info("Connected to ClickHouse and ensured table exists", "table", "flow_classifications")
	return &ClickHouseReporter{conn: conn, log: log}, nil
}

// Report inserts the cycle as one batch.
func (r *ClickHouseReporter) Report(ctx context.Context, results []model.Classification) error {
	if len(results) == 0 {
		return nil
	}
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO flow_classifications")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	now := time.Now()
	for _, c := range results {
		if err := batch.Append(classificationValues(now, c)...); err != nil {
			return fmt.Errorf("failed to append classification to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	r.log.V(1).Info("Wrote classifications", "count", len(results))
	return nil
}

// classificationValues returns the column values of one row in table order.
func classificationValues(at time.Time, c model.Classification) []any {
	return []any{
		at,
		c.FlowID,
		c.SwitchID,
		c.SrcAddr,
		c.DstAddr,
		c.Label,
		c.ForwardStatus.String(),
		c.ReverseStatus.String(),
		c.Features[:],
	}
}

// Close closes the connection.
func (r *ClickHouseReporter) Close() error {
	return r.conn.Close()
}
