// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import "errors"

// Kind classifies why a conversion failed.
type Kind int

const (
	// KindInputPersistence means the request's temporary files could not be
	// created, written, or removed.
	KindInputPersistence Kind = iota + 1
	// KindConversionEngine means the converter rejected the input, crashed,
	// or was cancelled.
	KindConversionEngine
	// KindOutputRetrieval means the converter reported success but the
	// document could not be found, read, or recorded.
	KindOutputRetrieval
)

// Sentinels matched with errors.Is against a returned *Error.
var (
	ErrInputPersistence = errors.New("input persistence failed")
	ErrConversionEngine = errors.New("conversion engine failed")
	ErrOutputRetrieval  = errors.New("output retrieval failed")
)

func (k Kind) String() string {
	switch k {
	case KindInputPersistence:
		return "input_persistence"
	case KindConversionEngine:
		return "conversion_engine"
	case KindOutputRetrieval:
		return "output_retrieval"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInputPersistence:
		return ErrInputPersistence
	case KindConversionEngine:
		return ErrConversionEngine
	case KindOutputRetrieval:
		return ErrOutputRetrieval
	default:
		return nil
	}
}

// Error is the single failure type returned by Service.Convert. Its message
// is meant for the end user and always includes the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return "conversion failed: " + e.Err.Error()
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if s := e.Kind.sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// KindOf returns the Kind of err, or 0 if err is not a conversion *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
