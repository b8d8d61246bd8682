package device

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
)

// FaultCategory classifies acquisition failures for telemetry.
type FaultCategory int

const (
	// FaultTimeout indicates the sensor did not deliver within the frame timeout
	FaultTimeout FaultCategory = iota
	// FaultDisconnected indicates the device or link went away (unplug, EOF, closed socket)
	FaultDisconnected
	// FaultFormat indicates a payload that could not be decoded
	FaultFormat
	// FaultUnknown indicates unclassified errors
	FaultUnknown
)

// String returns a human-readable string representation of the category
func (c FaultCategory) String() string {
	switch c {
	case FaultTimeout:
		return "timeout"
	case FaultDisconnected:
		return "disconnected"
	case FaultFormat:
		return "format"
	default:
		return "unknown"
	}
}

// Classify analyzes a frame read or decode error.
//
// Typed errors win; otherwise the message is matched against keyword
// lists, the same heuristic used for GStreamer bus errors, since most
// driver errors only carry text.
func Classify(err error) FaultCategory {
	if err == nil {
		return FaultUnknown
	}

	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return FaultTimeout
	case errors.Is(err, ErrClosed), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, os.ErrNotExist):
		return FaultDisconnected
	}

	msg := strings.ToLower(err.Error())

	// Format first: "short buffer" style errors also mention the device
	if containsAny(msg, formatKeywords) {
		return FaultFormat
	}
	if containsAny(msg, timeoutKeywords) {
		return FaultTimeout
	}
	if containsAny(msg, disconnectKeywords) {
		return FaultDisconnected
	}
	return FaultUnknown
}

var (
	formatKeywords = []string{
		"format",
		"decode",
		"convert",
		"short buffer",
		"caps",
		"not negotiated",
		"cbor",
		"stride",
	}
	timeoutKeywords = []string{
		"timeout",
		"timed out",
		"deadline",
		"resource temporarily unavailable",
	}
	disconnectKeywords = []string{
		"eos",
		"end of stream",
		"no such device",
		"disconnected",
		"closed",
		"broken pipe",
		"connection reset",
		"not found",
	}
)

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
