package main

import (
	"Go2NetClassifier/internal/classifier"
	"Go2NetClassifier/internal/config"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

const (
	modeTrain    = "train"
	modeClassify = "classify"
)

// Options holds the command-line overrides of the configuration file.
type Options struct {
	ConfigPath     string
	UpstreamType   string
	Command        string
	ClassifierType string
	ClassifierAddr string
	CentroidPath   string
	Cadence        int
	Timeout        time.Duration
	AllFlows       bool
	EnableAPI      bool
	ListenAddr     string
	SnapshotDir    string
	LogLevel       string

	fs *pflag.FlagSet
}

// NewOptions returns options with the default config location.
func NewOptions() *Options {
	return &Options{ConfigPath: "configs/config.yaml"}
}

// AddFlags binds the options to fs.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.fs = fs
	fs.StringVarP(&o.ConfigPath, "config", "c", o.ConfigPath, "Path to the YAML configuration. Missing files fall back to defaults.")
	fs.StringVar(&o.UpstreamType, "upstream", "", "Telemetry source: process, nats or stdin.")
	fs.StringVar(&o.Command, "command", "", "Shell command that starts the telemetry probe.")
	fs.StringVar(&o.ClassifierType, "classifier", "", "Classifier: grpc or centroid.")
	fs.StringVar(&o.ClassifierAddr, "classifier-addr", "", "Address of the gRPC model server.")
	fs.StringVar(&o.CentroidPath, "centroids", "", "Centroid model file for the centroid classifier.")
	fs.IntVar(&o.Cadence, "cadence", 0, "Records between two classification cycles.")
	fs.DurationVar(&o.Timeout, "timeout", 0, "Training collection time limit.")
	fs.BoolVar(&o.AllFlows, "all-flows", false, "Write a training row for every flow on each record.")
	fs.BoolVar(&o.EnableAPI, "api", false, "Serve the flow table and metrics over HTTP.")
	fs.StringVar(&o.ListenAddr, "listen", "", "HTTP API listen address.")
	fs.StringVar(&o.SnapshotDir, "snapshot-dir", "", "Directory for the flow table snapshot written at shutdown.")
	fs.StringVar(&o.LogLevel, "log-level", "", "Log level: debug, info, warn or error.")
}

func (o *Options) changed(name string) bool {
	f := o.fs.Lookup(name)
	return f != nil && f.Changed
}

// Apply overlays the flags that were set on cfg.
func (o *Options) Apply(cfg *config.Config) {
	if o.changed("upstream") {
		cfg.Upstream.Type = o.UpstreamType
	}
	if o.changed("command") {
		cfg.Upstream.Command = o.Command
	}
	if o.changed("classifier") {
		cfg.Classifier.Type = o.ClassifierType
	}
	if o.changed("classifier-addr") {
		cfg.Classifier.GRPC.Addr = o.ClassifierAddr
	}
	if o.changed("centroids") {
		cfg.Classifier.CentroidPath = o.CentroidPath
	}
	if o.changed("cadence") && o.Cadence > 0 {
		cfg.Engine.Cadence = o.Cadence
	}
	if o.changed("timeout") {
		cfg.Training.Timeout = o.Timeout
	}
	if o.changed("all-flows") {
		cfg.Training.AllFlows = o.AllFlows
	}
	if o.changed("api") {
		cfg.API.Enabled = o.EnableAPI
	}
	if o.changed("listen") {
		cfg.API.ListenAddr = o.ListenAddr
	}
	if o.changed("snapshot-dir") {
		cfg.Snapshot.Dir = o.SnapshotDir
	}
	if o.changed("log-level") {
		cfg.Logging.Level = o.LogLevel
	}
}

// parseCommand validates the positional arguments and returns the mode and, in
// training mode, the traffic type being collected.
func parseCommand(args []string) (mode, label string, err error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("missing command: %s <label> | %s", modeTrain, modeClassify)
	}
	switch args[0] {
	case modeTrain:
		if len(args) != 2 {
			return "", "", fmt.Errorf("usage: %s <label>", modeTrain)
		}
		for _, l := range classifier.Labels {
			if l == args[1] {
				return modeTrain, l, nil
			}
		}
		return "", "", fmt.Errorf("unknown traffic type %q, expected one of %v", args[1], classifier.Labels)
	case modeClassify:
		if len(args) != 1 {
			return "", "", fmt.Errorf("usage: %s", modeClassify)
		}
		return modeClassify, "", nil
	default:
		return "", "", fmt.Errorf("unknown command %q", args[0])
	}
}
