package model

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord marks a telemetry line that could not be decoded. Not fatal.
	ErrMalformedRecord = errors.New("malformed telemetry record")
	// ErrFlowIdentityCollision marks two physical flows resolving to the same key.
	ErrFlowIdentityCollision = errors.New("flow identity collision")
	// ErrClassifierUnavailable marks a failed or out-of-contract classifier call.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	// ErrUpstreamTerminated marks an unexpected exit of the telemetry source.
	ErrUpstreamTerminated = errors.New("upstream terminated")
	// ErrCounterReset marks a cumulative counter that went backwards.
	ErrCounterReset = errors.New("cumulative counter reset")
)

// MalformedRecordError describes why a telemetry line was rejected.
type MalformedRecordError struct {
	Line   string
	Reason string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedRecord, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedRecord, e.Reason)
}

func (e *MalformedRecordError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedRecord, e.Err}
	}
	return []error{ErrMalformedRecord}
}

// FlowIdentity is the (switch, source, destination) triple a flow was created with.
type FlowIdentity struct {
	SwitchID string
	SrcAddr  string
	DstAddr  string
}

func (id FlowIdentity) String() string {
	return id.SwitchID + "/" + id.SrcAddr + "->" + id.DstAddr
}

// CollisionError reports a key hit whose stored identity does not match the record.
type CollisionError struct {
	Stored   FlowIdentity
	Incoming FlowIdentity
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s: stored %s, incoming %s", ErrFlowIdentityCollision, e.Stored, e.Incoming)
}

func (e *CollisionError) Unwrap() error { return ErrFlowIdentityCollision }
