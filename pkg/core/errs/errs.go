// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package errs defines the typed errors returned by the array engine.
//
// All kinds are recoverable and are returned to the caller of the public API wrapped with a stack trace
// (see github.com/pkg/errors). Use errors.As, or the Is<Kind> helpers, to inspect them:
//
//	_, err := shapes.BroadcastDimensions([]int{5, 4}, []int{5})
//	var bErr *errs.BroadcastError
//	if errors.As(err, &bErr) {
//		fmt.Println(bErr.Axis, bErr.ShapeA, bErr.ShapeB)
//	}
package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind enumerates the classes of errors of the engine.
type Kind int

const (
	KindShape Kind = iota + 1
	KindBroadcast
	KindDType
	KindIndex
	KindAllocation
	KindInternalFault
)

var kindNames = map[Kind]string{
	KindShape:         "ShapeError",
	KindBroadcast:     "BroadcastError",
	KindDType:         "DTypeError",
	KindIndex:         "IndexError",
	KindAllocation:    "AllocationError",
	KindInternalFault: "InternalFault",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if name, found := kindNames[k]; found {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is implemented by all typed errors of this package.
type Error interface {
	error
	Kind() Kind
}

// ShapeError is returned when operand shapes are incompatible for the requested operation, or a reshape target's
// element count differs from the source's.
type ShapeError struct {
	Op      string
	Message string
}

func (e *ShapeError) Kind() Kind { return KindShape }

func (e *ShapeError) Error() string {
	if e.Op == "" {
		return "ShapeError: " + e.Message
	}
	return fmt.Sprintf("ShapeError in %s: %s", e.Op, e.Message)
}

// NewShapeError returns a ShapeError with a stack trace.
func NewShapeError(op, format string, args ...any) error {
	return errors.WithStack(&ShapeError{Op: op, Message: fmt.Sprintf(format, args...)})
}

// BroadcastError is returned when shapes cannot be aligned under the broadcasting rule.
//
// Axis is the index of the first incompatible axis in the broadcast (output) shape, and DimA and DimB are the
// conflicting dimensions at that axis, taken from the original shapes ShapeA and ShapeB.
type BroadcastError struct {
	Axis           int
	ShapeA, ShapeB []int
	DimA, DimB     int
}

func (e *BroadcastError) Kind() Kind { return KindBroadcast }

func (e *BroadcastError) Error() string {
	return fmt.Sprintf("BroadcastError: shapes %v and %v cannot be broadcast: axis #%d has dimensions %d and %d, "+
		"and neither is 1", e.ShapeA, e.ShapeB, e.Axis, e.DimA, e.DimB)
}

// DTypeError is returned when an operation is invoked on an unsupported dtype, or for a disallowed conversion
// or promotion.
type DTypeError struct {
	Op      string
	DTypes  []fmt.Stringer
	Message string
}

func (e *DTypeError) Kind() Kind { return KindDType }

func (e *DTypeError) Error() string {
	parts := make([]string, 0, len(e.DTypes))
	for _, dtype := range e.DTypes {
		parts = append(parts, dtype.String())
	}
	return fmt.Sprintf("DTypeError in %s (dtypes %s): %s", e.Op, strings.Join(parts, ", "), e.Message)
}

// NewDTypeError returns a DTypeError with a stack trace.
func NewDTypeError[D fmt.Stringer](op string, dtypes []D, format string, args ...any) error {
	e := &DTypeError{Op: op, Message: fmt.Sprintf(format, args...)}
	for _, dtype := range dtypes {
		e.DTypes = append(e.DTypes, dtype)
	}
	return errors.WithStack(e)
}

// IndexError is returned for an index or slice bound out of range for its axis, or when more indices are
// given than the view has axes.
type IndexError struct {
	Axis    int
	Index   int
	Size    int
	Message string
}

func (e *IndexError) Kind() Kind { return KindIndex }

func (e *IndexError) Error() string {
	if e.Message != "" {
		return "IndexError: " + e.Message
	}
	return fmt.Sprintf("IndexError: index %d out of range [%d, %d) for axis #%d", e.Index, -e.Size, e.Size, e.Axis)
}

// NewIndexError returns an IndexError for axis with a stack trace.
func NewIndexError(axis, index, size int) error {
	return errors.WithStack(&IndexError{Axis: axis, Index: index, Size: size})
}

// AllocationError is returned when the buffer store cannot satisfy an allocation.
type AllocationError struct {
	DType fmt.Stringer
	Size  int
	Cause error
}

func (e *AllocationError) Kind() Kind { return KindAllocation }

func (e *AllocationError) Error() string {
	return fmt.Sprintf("AllocationError: failed to allocate %d elements of %s: %v", e.Size, e.DType, e.Cause)
}

func (e *AllocationError) Unwrap() error { return e.Cause }

// InternalFault wraps any unexpected failure of the backend side of the boundary -- typically a recovered panic.
// It always carries the originating operation and a description (shape and dtype) of each operand.
type InternalFault struct {
	Op       string
	Operands []string
	Cause    any
}

func (e *InternalFault) Kind() Kind { return KindInternalFault }

func (e *InternalFault) Error() string {
	return fmt.Sprintf("InternalFault in %s(%s): %v", e.Op, strings.Join(e.Operands, ", "), e.Cause)
}

// Unwrap returns the cause, if it is an error.
func (e *InternalFault) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// ErrFinalized is returned by every method of an array view used after it was finalized.
// It has no Kind: it is a misuse of the API, not a failure of an operation.
var ErrFinalized = errors.New("array view used after Finalize")

// KindOf returns the Kind of the first typed error in the chain of err, or 0 if there is none.
func KindOf(err error) Kind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return 0
}

func IsShapeError(err error) bool      { return KindOf(err) == KindShape }
func IsBroadcastError(err error) bool  { return KindOf(err) == KindBroadcast }
func IsDTypeError(err error) bool      { return KindOf(err) == KindDType }
func IsIndexError(err error) bool      { return KindOf(err) == KindIndex }
func IsAllocationError(err error) bool { return KindOf(err) == KindAllocation }
func IsInternalFault(err error) bool   { return KindOf(err) == KindInternalFault }
