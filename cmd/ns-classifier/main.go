package main

import (
	"Go2NetClassifier/internal/api"
	"Go2NetClassifier/internal/classifier"
	"Go2NetClassifier/internal/config"
	"Go2NetClassifier/internal/engine/manager"
	"Go2NetClassifier/internal/logging"
	"Go2NetClassifier/internal/metrics"
	"Go2NetClassifier/internal/model"
	"Go2NetClassifier/internal/report"
	"Go2NetClassifier/internal/snapshot"
	"Go2NetClassifier/internal/training"
	"Go2NetClassifier/internal/upstream"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ns-classifier: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) (err error) {
	flags := pflag.NewFlagSet("ns-classifier", pflag.ContinueOnError)
	opts := NewOptions()
	opts.AddFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	mode, label, err := parseCommand(flags.Args())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}
	opts.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	log.Info("Starting ns-classifier", "mode", mode, "upstream", cfg.Upstream.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(reg)

	var (
		sink    manager.Sink
		closers []io.Closer
	)
	defer func() {
		for _, c := range closers {
			err = multierr.Append(err, c.Close())
		}
	}()

	switch mode {
	case modeTrain:
		sink, err = newTrainingSink(cfg, label, log)
	case modeClassify:
		var clf model.Classifier
		clf, err = newClassifier(cfg)
		if err != nil {
			return err
		}
		if c, ok := clf.(io.Closer); ok {
			closers = append(closers, c)
		}
		sink, err = newClassifierSink(cfg, clf, log)
	}
	if err != nil {
		return err
	}

	mgr, err := manager.NewManager(sink, log, manager.WithMetrics(met))
	if err != nil {
		return err
	}

	if cfg.API.Enabled {
		apiCtx, cancelAPI := context.WithCancel(ctx)
		done := make(chan error, 1)
		srv := api.NewServer(cfg.API.ListenAddr, mgr, reg, log)
		go func() { done <- srv.Run(apiCtx) }()
		defer func() {
			cancelAPI()
			err = multierr.Append(err, <-done)
		}()
	}

	runCtx := ctx
	if mode == modeTrain && cfg.Training.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Training.Timeout)
		defer cancel()
		log.Info("Collecting training data", "label", label, "timeout", cfg.Training.Timeout)
	}

	runErr := mgr.Run(runCtx, newSource(cfg, log))
	if cfg.Snapshot.Dir != "" {
		dir, err := snapshot.NewWriter(cfg.Snapshot.Dir).Write(mgr.Snapshot())
		if err != nil {
			log.Error(err, "Failed to write flow table snapshot")
		} else {
			log.Info("Flow table snapshot written", "dir", dir)
		}
	}
	if runErr != nil {
		return runErr
	}
	log.Info("Shutdown complete", "records", mgr.Records())
	return nil
}

// loadConfig reads the config file; a missing file yields the defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func newSource(cfg *config.Config, log logr.Logger) model.Source {
	switch cfg.Upstream.Type {
	case "nats":
		return upstream.NewNATSSource(cfg.Upstream.NATS, log)
	case "stdin":
		return upstream.NewReaderSource(os.Stdin)
	default:
		return upstream.NewProcessSource(cfg.Upstream.Command, log)
	}
}

func newClassifier(cfg *config.Config) (model.Classifier, error) {
	if cfg.Classifier.Type == "centroid" {
		return classifier.LoadCentroids(cfg.Classifier.CentroidPath)
	}
	return classifier.NewGRPCClassifier(cfg.Classifier.GRPC.Addr, cfg.Classifier.GRPC.Timeout)
}

// multiWriter fans training rows out to several writers.
type multiWriter []model.TrainingWriter

func (m multiWriter) WriteRow(row model.TrainingRow) error {
	for _, w := range m {
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (m multiWriter) Close() error {
	var err error
	for _, w := range m {
		err = multierr.Append(err, w.Close())
	}
	return err
}

func newTrainingSink(cfg *config.Config, label string, log logr.Logger) (manager.Sink, error) {
	path := cfg.TrainingOutputPath(label)
	tsv, err := training.CreateTSV(path)
	if err != nil {
		return nil, err
	}
	log.Info("Writing training data", "path", path)
	writers := multiWriter{tsv}

	if cfg.Training.ClickHouse.Enabled {
		ch, err := training.NewClickHouseWriter(cfg.Training.ClickHouse, log)
		if err != nil {
			return nil, multierr.Append(err, writers.Close())
		}
		writers = append(writers, ch)
	}

	var w model.TrainingWriter = writers
	if len(writers) == 1 {
		w = tsv
	}
	return &manager.TrainingSink{Writer: w, Label: label, AllFlows: cfg.Training.AllFlows}, nil
}

func newClassifierSink(cfg *config.Config, clf model.Classifier, log logr.Logger) (manager.Sink, error) {
	var reporters []model.Reporter
	fail := func(err error) (manager.Sink, error) {
		for _, r := range reporters {
			err = multierr.Append(err, r.Close())
		}
		return nil, err
	}

	if cfg.Report.Table {
		reporters = append(reporters, report.NewTableRenderer(os.Stdout))
	}
	if cfg.Report.TrafficLog != "" {
		tl, err := report.OpenTrafficLog(cfg.Report.TrafficLog)
		if err != nil {
			return fail(err)
		}
		reporters = append(reporters, tl)
	}
	if cfg.Report.NATS.Enabled {
		p, err := report.NewNATSPublisher(cfg.Report.NATS.NATSConfig, log)
		if err != nil {
			return fail(err)
		}
		reporters = append(reporters, p)
	}
	if cfg.Report.ClickHouse.Enabled {
		ch, err := report.NewClickHouseReporter(cfg.Report.ClickHouse.Conn, log)
		if err != nil {
			return fail(err)
		}
		reporters = append(reporters, ch)
	}

	return &manager.ClassifierSink{Classifier: clf, Reporters: reporters, Cadence: cfg.Engine.Cadence}, nil
}
