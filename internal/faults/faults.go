// Package faults carries the application error taxonomy. Every error that
// crosses the session boundary is renderable as a human message and carries
// a Kind that decides whether the operation may be retried.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies an error for retry and display decisions.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindIngest marks an unreadable or empty document. Not retried.
	KindIngest
	// KindTransient marks a network or rate-limit failure on a hosted
	// service call. Eligible for bounded retry with backoff.
	KindTransient
	// KindFatal marks bad credentials or exhausted quota. Never retried.
	KindFatal
	// KindStore marks a vector store failure. Recovery is to discard and
	// rebuild the collection.
	KindStore
)

type Fault struct {
	Kind Kind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Op == "" {
		return f.Err.Error()
	}
	return f.Op + ": " + f.Err.Error()
}

func (f *Fault) Unwrap() error { return f.Err }

// New wraps err with a kind and the operation that produced it.
func New(kind Kind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

// Newf builds a fault from a format string.
func Newf(kind Kind, op, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the innermost fault in err's chain, or
// KindUnknown when err carries none.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// IsKind reports whether err's chain contains a fault of the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }

var fatalMarkers = []string{
	"401", "403",
	"unauthorized",
	"invalid api key",
	"incorrect api key",
	"invalid_api_key",
	"permission denied",
	"insufficient_quota",
	"quota",
	"billing",
}

// FromService classifies an error returned by a hosted API client.
// Authentication and quota failures are fatal; everything else that crosses
// a network boundary is treated as transient so the bounded retry loop can
// decide when to give up.
func FromService(op string, err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return New(KindTransient, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return New(KindTransient, op, err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return New(KindFatal, op, err)
		}
	}
	return New(KindTransient, op, err)
}

// UserMessage renders err as a single human-readable line for the UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindIngest:
		return "Could not read the document: " + err.Error()
	case KindTransient:
		return "Service unavailable, gave up after retries: " + err.Error()
	case KindFatal:
		return "Authentication or quota failure, check your API key: " + err.Error()
	case KindStore:
		return "Vector store error, try processing the document again: " + err.Error()
	default:
		return err.Error()
	}
}
