package main

import (
	"Go2NetClassifier/internal/logging"
	"Go2NetClassifier/pkg/pcap"
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

// pcap-telemetry replays a capture as switch telemetry on stdout, so that it can be
// used as the upstream command of ns-classifier.
func main() {
	switchID := pflag.String("switch", "1", "Switch ID reported in every line.")
	interval := pflag.Duration("interval", time.Second, "Capture time between two counter reports.")
	logLevel := pflag.String("log-level", "info", "Log level.")
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pcap-telemetry [flags] <path_to_pcap_file>")
		os.Exit(1)
	}
	pcapFilePath := pflag.Arg(0)

	log, err := logging.New(*logLevel, true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	reader, err := pcap.NewReader(pcapFilePath)
	if err != nil {
		log.Error(err, "Failed to open pcap file", "path", pcapFilePath)
		os.Exit(1)
	}
	defer reader.Close()
	log.Info("Replaying capture", "path", pcapFilePath, "switch", *switchID, "interval", *interval)

	out := bufio.NewWriter(os.Stdout)
	lines, err := reader.Emit(out, *switchID, *interval)
	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		log.Error(err, "Replay failed", "lines", lines)
		os.Exit(1)
	}
	log.Info("Finished reading all packets from pcap file", "lines", lines)
}
