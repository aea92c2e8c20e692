package protocol

import (
	"Go2NetClassifier/internal/model"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	fieldDelimiter = "\t"
	numFields      = 8
)

// Field positions after the marker.
const (
	fieldTimestamp = iota
	fieldSwitchID
	fieldInPort
	fieldSrcAddr
	fieldDstAddr
	fieldOutPort
	fieldPackets
	fieldBytes
)

// ParseLine decodes one telemetry line. Lines that do not start with the marker and
// its delimiter are not records and yield (nil, nil); the caller skips them. Lines
// longer than model.MaxLineLength are always malformed.
func ParseLine(line string) (*model.TelemetryRecord, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) > model.MaxLineLength {
		return nil, &model.MalformedRecordError{Line: line, Reason: "line exceeds " + strconv.Itoa(model.MaxLineLength) + " bytes"}
	}
	if !strings.HasPrefix(line, model.TelemetryMarker+fieldDelimiter) {
		return nil, nil
	}
	if !utf8.ValidString(line) {
		return nil, &model.MalformedRecordError{Line: line, Reason: "invalid UTF-8"}
	}

	fields := strings.Split(line, fieldDelimiter)[1:]
	if len(fields) != numFields {
		return nil, &model.MalformedRecordError{
			Line:   line,
			Reason: "expected " + strconv.Itoa(numFields) + " fields, got " + strconv.Itoa(len(fields)),
		}
	}

	ts, err := strconv.ParseInt(fields[fieldTimestamp], 10, 64)
	if err != nil {
		return nil, &model.MalformedRecordError{Line: line, Reason: "timestamp", Err: err}
	}
	packets, err := parseCounter(fields[fieldPackets])
	if err != nil {
		return nil, &model.MalformedRecordError{Line: line, Reason: "packet count", Err: err}
	}
	bytes, err := parseCounter(fields[fieldBytes])
	if err != nil {
		return nil, &model.MalformedRecordError{Line: line, Reason: "byte count", Err: err}
	}

	return &model.TelemetryRecord{
		Timestamp:   ts,
		SwitchID:    fields[fieldSwitchID],
		InPort:      fields[fieldInPort],
		SrcAddr:     fields[fieldSrcAddr],
		DstAddr:     fields[fieldDstAddr],
		OutPort:     fields[fieldOutPort],
		PacketCount: packets,
		ByteCount:   bytes,
	}, nil
}

// parseCounter parses a cumulative counter, which must be non-negative.
func parseCounter(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, strconv.ErrRange
	}
	return v, nil
}
