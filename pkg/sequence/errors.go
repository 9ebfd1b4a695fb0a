package sequence

import "errors"

// ErrUnknownSequenceKind is returned by Registry.Get for an
// unregistered SequenceKind.
var ErrUnknownSequenceKind = errors.New("sequence: unknown sequence kind")

// ErrNoCallable is returned by TVA when MFP produced no callable.
var ErrNoCallable = errors.New("sequence: no callable produced by MFP")

// ErrNoResult is returned by OR when no step produced a publishable
// reference.
var ErrNoResult = errors.New("sequence: no result to publish")
