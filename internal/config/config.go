package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// UpstreamConfig selects where telemetry lines come from.
type UpstreamConfig struct {
	// Type is one of "process", "nats" or "stdin".
	Type    string     `yaml:"type"`
	Command string     `yaml:"command"`
	NATS    NATSConfig `yaml:"nats"`
}

// NATSConfig holds the details of a NATS connection.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// EngineConfig tunes the dispatch loop.
type EngineConfig struct {
	// Cadence is the number of records between two classification cycles.
	Cadence int `yaml:"cadence"`
}

// TrainingConfig controls training-data collection.
type TrainingConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	// OutputPath may contain "{label}", replaced by the traffic type being collected.
	OutputPath string `yaml:"output_path"`
	// AllFlows writes a row for every flow on each record instead of only the updated one.
	AllFlows   bool                   `yaml:"all_flows"`
	ClickHouse ClickHouseWriterConfig `yaml:"clickhouse"`
}

// ClickHouseWriterConfig enables a ClickHouse sink.
type ClickHouseWriterConfig struct {
	Enabled   bool             `yaml:"enabled"`
	BatchSize int              `yaml:"batch_size"`
	Conn      ClickHouseConfig `yaml:"conn"`
}

// ClassifierConfig selects the classification model.
type ClassifierConfig struct {
	// Type is "grpc" or "centroid".
	Type string     `yaml:"type"`
	GRPC GRPCConfig `yaml:"grpc"`
	// CentroidPath is the YAML model file for the "centroid" type.
	CentroidPath string `yaml:"centroid_path"`
}

// GRPCConfig holds the remote model server address.
type GRPCConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
}

// ReportConfig controls where classification results go.
type ReportConfig struct {
	Table      bool                   `yaml:"table"`
	TrafficLog string                 `yaml:"traffic_log"`
	NATS       NATSReportConfig       `yaml:"nats"`
	ClickHouse ClickHouseWriterConfig `yaml:"clickhouse"`
}

// NATSReportConfig enables publishing classifications to NATS.
type NATSReportConfig struct {
	Enabled    bool `yaml:"enabled"`
	NATSConfig `yaml:",inline"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// SnapshotConfig controls the flow table dump written at shutdown.
type SnapshotConfig struct {
	// Dir is the root directory of snapshots; empty disables them.
	Dir string `yaml:"dir"`
}

// LoggingConfig holds the logger settings.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Engine     EngineConfig     `yaml:"engine"`
	Training   TrainingConfig   `yaml:"training"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Report     ReportConfig     `yaml:"report"`
	API        APIConfig        `yaml:"api"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Report: ReportConfig{Table: true}}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the configuration from a YAML file and applies defaults. Callers
// apply command-line overrides and then call Validate.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{Report: ReportConfig{Table: true}}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Upstream.Type == "" {
		c.Upstream.Type = "process"
	}
	if c.Upstream.NATS.URL == "" {
		c.Upstream.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.Upstream.NATS.Subject == "" {
		c.Upstream.NATS.Subject = "gonc.telemetry.raw"
	}
	if c.Engine.Cadence <= 0 {
		c.Engine.Cadence = 10
	}
	if c.Training.Timeout == 0 {
		c.Training.Timeout = 15 * time.Minute
	}
	if c.Training.OutputPath == "" {
		c.Training.OutputPath = "{label}_training_data.csv"
	}
	if c.Training.ClickHouse.BatchSize <= 0 {
		c.Training.ClickHouse.BatchSize = 1000
	}
	if c.Classifier.Type == "" {
		c.Classifier.Type = "grpc"
	}
	if c.Classifier.GRPC.Addr == "" {
		c.Classifier.GRPC.Addr = "127.0.0.1:50051"
	}
	if c.Classifier.GRPC.Timeout == 0 {
		c.Classifier.GRPC.Timeout = 2 * time.Second
	}
	if c.Report.TrafficLog == "" {
		c.Report.TrafficLog = "Traffic.csv"
	}
	if c.Report.NATS.URL == "" {
		c.Report.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.Report.NATS.Subject == "" {
		c.Report.NATS.Subject = "gonc.classifications"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate reports the first inconsistency in the configuration.
func (c *Config) Validate() error {
	switch c.Upstream.Type {
	case "process":
		if strings.TrimSpace(c.Upstream.Command) == "" {
			return fmt.Errorf("upstream.command is required for a process upstream")
		}
	case "nats", "stdin":
	default:
		return fmt.Errorf("unknown upstream type %q", c.Upstream.Type)
	}

	switch c.Classifier.Type {
	case "grpc":
		if c.Classifier.GRPC.Addr == "" {
			return fmt.Errorf("classifier.grpc.addr is required")
		}
	case "centroid":
		if c.Classifier.CentroidPath == "" {
			return fmt.Errorf("classifier.centroid_path is required")
		}
	default:
		return fmt.Errorf("unknown classifier type %q", c.Classifier.Type)
	}

	if c.Training.Timeout < 0 {
		return fmt.Errorf("training.timeout must not be negative")
	}
	if c.Training.ClickHouse.Enabled && c.Training.ClickHouse.Conn.Host == "" {
		return fmt.Errorf("training.clickhouse.conn.host is required")
	}
	if c.Report.ClickHouse.Enabled && c.Report.ClickHouse.Conn.Host == "" {
		return fmt.Errorf("report.clickhouse.conn.host is required")
	}
	return nil
}

// TrainingOutputPath returns the training file path for a traffic type.
func (c *Config) TrainingOutputPath(label string) string {
	return strings.ReplaceAll(c.Training.OutputPath, "{label}", label)
}
