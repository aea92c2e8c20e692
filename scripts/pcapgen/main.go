package main

import (
	"Go2NetClassifier/internal/logging"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/pflag"
)

// profile describes the shape of one traffic type between two hosts.
type profile struct {
	port       layers.UDPPort
	minPayload int
	maxPayload int
	gap        time.Duration // between two requests
	replyEvery int           // one reply per N requests, 0 for none
}

var profiles = map[string]profile{
	"Voice":  {port: 5060, minPayload: 160, maxPayload: 180, gap: 20 * time.Millisecond, replyEvery: 1},
	"DNS":    {port: 53, minPayload: 30, maxPayload: 60, gap: 200 * time.Millisecond, replyEvery: 1},
	"Video":  {port: 5004, minPayload: 1200, maxPayload: 1400, gap: 5 * time.Millisecond, replyEvery: 20},
	"Ping":   {port: 7, minPayload: 56, maxPayload: 56, gap: time.Second, replyEvery: 1},
	"Game":   {port: 27015, minPayload: 40, maxPayload: 120, gap: 30 * time.Millisecond, replyEvery: 1},
	"quake3": {port: 27960, minPayload: 50, maxPayload: 90, gap: 50 * time.Millisecond, replyEvery: 1},
	"Telnet": {port: 23, minPayload: 1, maxPayload: 10, gap: 300 * time.Millisecond, replyEvery: 1},
}

func main() {
	outputFile := pflag.StringP("output", "o", "test.pcap", "Output pcap file path")
	traffic := pflag.StringP("traffic", "t", "Ping", "Traffic type to synthesize")
	packetCount := pflag.IntP("count", "c", 1000, "Number of request packets to generate")
	seed := pflag.Int64("seed", 1, "Random seed")
	pflag.Parse()

	log, err := logging.New("info", true)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fatal := func(err error, msg string) {
		log.Error(err, msg)
		os.Exit(1)
	}

	p, ok := profiles[*traffic]
	if !ok {
		fatal(errors.New("unknown traffic type"), *traffic)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		fatal(err, "Failed to create output file")
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		fatal(err, "Failed to write pcap header")
	}

	rng := rand.New(rand.NewSource(*seed))
	client := host{mac: net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}, ip: net.IPv4(10, 0, 0, 1), port: 40000}
	server := host{mac: net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}, ip: net.IPv4(10, 0, 0, 2), port: p.port}

	log.Info("Generating packets", "count", *packetCount, "traffic", *traffic, "output", *outputFile)

	at := time.Now()
	written := 0
	for i := 0; i < *packetCount; i++ {
		size := p.minPayload + rng.Intn(p.maxPayload-p.minPayload+1)
		if err := writePacket(pcapWriter, at, client, server, size); err != nil {
			fatal(err, "Failed to write packet")
		}
		written++
		if p.replyEvery > 0 && (i+1)%p.replyEvery == 0 {
			if err := writePacket(pcapWriter, at.Add(p.gap/4), server, client, size); err != nil {
				fatal(err, "Failed to write packet")
			}
			written++
		}
		at = at.Add(p.gap)
	}

	log.Info("Successfully generated packets", "written", written, "output", *outputFile)
}

type host struct {
	mac  net.HardwareAddr
	ip   net.IP
	port layers.UDPPort
}

func writePacket(w *pcapgo.Writer, at time.Time, from, to host, payloadSize int) error {
	ethLayer := &layers.Ethernet{SrcMAC: from.mac, DstMAC: to.mac, EthernetType: layers.EthernetTypeIPv4}
	ipLayer := &layers.IPv4{SrcIP: from.ip, DstIP: to.ip, Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP}
	udpLayer := &layers.UDP{SrcPort: from.port, DstPort: to.port}
	if err := udpLayer.SetNetworkLayerForChecksum(ipLayer); err != nil {
		return err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ethLayer, ipLayer, udpLayer, gopacket.Payload(make([]byte, payloadSize))); err != nil {
		return fmt.Errorf("failed to serialize layers: %w", err)
	}

	ci := gopacket.CaptureInfo{Timestamp: at, CaptureLength: len(buf.Bytes()), Length: len(buf.Bytes())}
	return w.WritePacket(ci, buf.Bytes())
}
