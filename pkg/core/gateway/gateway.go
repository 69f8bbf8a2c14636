// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package gateway is the single entry point from the array engine to the backend.
//
// Every call that reaches the backend goes through a Gateway, that:
//
//   - Counts the crossings (see Stats), so tests can assert that local operations never reach the backend.
//   - Converts any panic raised on the backend side into an *errs.InternalFault, carrying the operation and a
//     description of each operand. Backend errors that already carry a typed kind (errs.KindOf) are passed
//     through, and any other error is also returned as an *errs.InternalFault.
//
// A Gateway is safe for concurrent use.
package gateway

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Stats counts the calls that crossed to the backend.
type Stats struct {
	// Crossings is the total number of calls to the backend, the sum of all the others.
	Crossings int64

	Executions, Allocations, Imports, Releases, DataAccesses int64
}

// Sub returns the difference s - previous, for each counter.
func (s Stats) Sub(previous Stats) Stats {
	return Stats{
		Crossings:    s.Crossings - previous.Crossings,
		Executions:   s.Executions - previous.Executions,
		Allocations:  s.Allocations - previous.Allocations,
		Imports:      s.Imports - previous.Imports,
		Releases:     s.Releases - previous.Releases,
		DataAccesses: s.DataAccesses - previous.DataAccesses,
	}
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("crossings=%d (executions=%d, allocations=%d, imports=%d, releases=%d, data accesses=%d)",
		s.Crossings, s.Executions, s.Allocations, s.Imports, s.Releases, s.DataAccesses)
}

// Gateway wraps a backends.Backend.
type Gateway struct {
	backend backends.Backend

	crossings, executions, allocations, imports, releases, dataAccesses atomic.Int64
}

// New creates a Gateway for the given backend.
func New(backend backends.Backend) *Gateway {
	return &Gateway{backend: backend}
}

var (
	defaultOnce    sync.Once
	defaultGateway *Gateway
	defaultErr     error
)

// Default returns the process default Gateway, created on the first call with backends.New().
//
// The backend is configured with the NDARRAY_BACKEND environment variable, see backends.New. The package
// "github.com/gomlx/ndarray/backends/default" must be imported somewhere for the default backend to be available.
func Default() (*Gateway, error) {
	defaultOnce.Do(func() {
		var backend backends.Backend
		backend, defaultErr = backends.New()
		if defaultErr != nil {
			defaultErr = errors.WithMessage(defaultErr, "failed to create default gateway")
			return
		}
		defaultGateway = New(backend)
		klog.V(1).Infof("default gateway using backend %q: %s", backend.Name(), backend.Description())
	})
	return defaultGateway, defaultErr
}

// MustDefault returns Default, and panics on error.
func MustDefault() *Gateway {
	gw, err := Default()
	if err != nil {
		panic(err)
	}
	return gw
}

// Backend returns the wrapped backend.
func (g *Gateway) Backend() backends.Backend {
	return g.backend
}

// String implements fmt.Stringer.
func (g *Gateway) String() string {
	return fmt.Sprintf("Gateway(%s)", g.backend.Name())
}

// Stats returns a snapshot of the counters of crossings.
func (g *Gateway) Stats() Stats {
	return Stats{
		Crossings:    g.crossings.Load(),
		Executions:   g.executions.Load(),
		Allocations:  g.allocations.Load(),
		Imports:      g.imports.Load(),
		Releases:     g.releases.Load(),
		DataAccesses: g.dataAccesses.Load(),
	}
}

// MemoryStats returns the backend's memory stats, if it reports them.
func (g *Gateway) MemoryStats() (stats backends.MemoryStats, ok bool) {
	reporter, ok := g.backend.(backends.MemoryReporter)
	if !ok {
		return
	}
	return reporter.MemoryStats(), true
}

// cross calls fn, counting one crossing, and converts a panic or an untyped error to an *errs.InternalFault.
// describe is only called on failure.
func (g *Gateway) cross(op string, counter *atomic.Int64, describe func() []string, fn func() error) (err error) {
	g.crossings.Add(1)
	counter.Add(1)
	exception := exceptions.Try(func() {
		err = fn()
	})
	if exception != nil {
		fault := &errs.InternalFault{Op: op, Operands: describe(), Cause: exception}
		klog.V(1).Infof("backend panicked: %v", fault)
		return errors.WithStack(fault)
	}
	if err != nil && errs.KindOf(err) == 0 {
		return errors.WithStack(&errs.InternalFault{Op: op, Operands: describe(), Cause: err})
	}
	return err
}

// Alloc allocates a buffer for size elements of dtype. If zeroed is false, the contents are undefined.
//
// Failures are returned as *errs.AllocationError.
func (g *Gateway) Alloc(dtype dtypes.DType, size int, zeroed bool) (buffer backends.Buffer, err error) {
	err = g.cross("Alloc", &g.allocations, describeAlloc(dtype, size), func() error {
		buffer, err = g.backend.NewBuffer(dtype, size, zeroed)
		return err
	})
	if err != nil {
		return nil, asAllocationError(err, dtype, size)
	}
	klog.V(2).Infof("gateway: Alloc(%s, %d, zeroed=%v)", dtype, size, zeroed)
	return buffer, nil
}

// Import allocates a buffer for size elements of dtype with a byte-exact copy of data.
func (g *Gateway) Import(dtype dtypes.DType, size int, data []byte) (buffer backends.Buffer, err error) {
	err = g.cross("Import", &g.imports, describeAlloc(dtype, size), func() error {
		buffer, err = g.backend.BufferFromBytes(dtype, size, data)
		return err
	})
	if err != nil {
		return nil, asAllocationError(err, dtype, size)
	}
	klog.V(2).Infof("gateway: Import(%s, %d, %d bytes)", dtype, size, len(data))
	return buffer, nil
}

func describeAlloc(dtype dtypes.DType, size int) func() []string {
	return func() []string { return []string{fmt.Sprintf("%s[%d]", dtype, size)} }
}

// asAllocationError converts faults during an allocation to *errs.AllocationError. Other typed errors (like a
// DTypeError for an invalid dtype) are kept.
func asAllocationError(err error, dtype dtypes.DType, size int) error {
	if kind := errs.KindOf(err); kind != errs.KindInternalFault {
		return err
	}
	return errors.WithStack(&errs.AllocationError{DType: dtype, Size: size, Cause: err})
}

// Release frees the buffer. Releasing a buffer twice is a fault reported by the backend.
func (g *Gateway) Release(buffer backends.Buffer) error {
	klog.V(2).Infof("gateway: Release(%v)", buffer)
	return g.cross("Release", &g.releases, describeBuffer(buffer), func() error {
		return g.backend.BufferFinalize(buffer)
	})
}

func describeBuffer(buffer backends.Buffer) func() []string {
	return func() []string { return []string{fmt.Sprintf("%v", buffer)} }
}

// Data calls accessFn with the flat slice ([]T for the dtype) of the whole buffer. The slice is the backend
// storage itself: writes to it are visible to every user of the buffer, and it must not be used after accessFn
// returns.
func (g *Gateway) Data(buffer backends.Buffer, accessFn func(flat any)) error {
	var flat any
	err := g.cross("Data", &g.dataAccesses, describeBuffer(buffer), func() (err error) {
		flat, err = g.backend.BufferData(buffer)
		return err
	})
	if err != nil {
		return err
	}
	accessFn(flat)
	return nil
}

// Execute crosses to the backend once to execute the operation over the operands.
//
// The result is a new buffer, owned by the caller, with its contents laid out contiguously in row-major order.
func (g *Gateway) Execute(op backends.OpType, operands []backends.Operand, params backends.Params) (result backends.Result, err error) {
	describe := func() []string {
		descriptions := make([]string, len(operands))
		for ii, operand := range operands {
			descriptions[ii] = operand.String()
		}
		return descriptions
	}
	err = g.cross(op.String(), &g.executions, describe, func() error {
		result, err = g.backend.Execute(op, operands, params)
		return err
	})
	if err != nil {
		return backends.Result{}, err
	}
	if klog.V(2).Enabled() {
		klog.Infof("gateway: Execute(%s, %v) -> %s", op, operands, result.Shape)
	}
	return result, nil
}
