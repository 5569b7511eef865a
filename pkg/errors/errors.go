// Package errors provides error handling for texserve.
//
// It re-exports github.com/cockroachdb/errors and defines the sentinel errors
// every source adapter wraps, so the engine can contain failures by class:
//
//	if err := readBib(path); err != nil {
//	    return errors.Wrapf(errors.ErrSourceUnavailable, "bib %s: %v", path, err)
//	}
//
//	if errors.Is(err, errors.ErrSourceUnavailable) {
//	    // degrade to no suggestions for this source only
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint      = crdb.WithHint
	WithHintf     = crdb.WithHintf
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
	CombineErrors = crdb.CombineErrors
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Sentinel errors. Wrap these to add context while keeping the class.
var (
	// ErrInvalidSelector marks a scope selector that could not be parsed.
	ErrInvalidSelector = New("invalid scope selector")

	// ErrSourceUnavailable marks a missing/unreadable file or a failed external process.
	ErrSourceUnavailable = New("source unavailable")

	// ErrParseFailure marks malformed completion or bibliography content.
	ErrParseFailure = New("parse failure")

	// ErrConfigInvalid marks a configuration value that could not be used.
	ErrConfigInvalid = New("invalid configuration")

	// ErrNotFound indicates a missing cache entry or group.
	ErrNotFound = New("not found")
)

// IsInvalidSelector checks if an error is or wraps ErrInvalidSelector
func IsInvalidSelector(err error) bool {
	return err != nil && Is(err, ErrInvalidSelector)
}

// IsSourceUnavailable checks if an error is or wraps ErrSourceUnavailable
func IsSourceUnavailable(err error) bool {
	return err != nil && Is(err, ErrSourceUnavailable)
}

// IsParseFailure checks if an error is or wraps ErrParseFailure
func IsParseFailure(err error) bool {
	return err != nil && Is(err, ErrParseFailure)
}

// IsConfigInvalid checks if an error is or wraps ErrConfigInvalid
func IsConfigInvalid(err error) bool {
	return err != nil && Is(err, ErrConfigInvalid)
}

// IsNotFound checks if an error is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
