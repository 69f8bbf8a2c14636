// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package simplego implements a simple, and not very fast, but very portable backend for the array engine.
//
// Buffers are plain Go slices, and operations are executed eagerly by Go kernels that read their operands
// through the strided descriptors given. It supports all dtypes of package dtypes.
//
// Configuration options (as in NDARRAY_BACKEND="go:max_memory=2GiB,parallelism=4"):
//
//   - max_memory: maximum amount of memory used by the live buffers, in any format accepted by
//     humanize.ParseBytes (e.g.: "512MB", "2GiB"). Allocations beyond that fail with an errs.AllocationError.
//     Default is unlimited.
//   - parallelism: soft limit of goroutines used by a single operation. 0 disables parallelism, -1 makes it
//     unlimited. Default is runtime.NumCPU().
package simplego

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/internal/workerspool"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackendName to be used in NDARRAY_BACKEND to specify this backend.
const BackendName = "go"

// Registers New() as the default constructor for the "go" backend.
func init() {
	backends.Register(BackendName, New)
}

// New constructs a new SimpleGo Backend with the given config string.
// See package documentation for the options.
func New(config string) (backends.Backend, error) {
	return NewBackend(config)
}

// NewBackend is like New, but returns the concrete *Backend type.
func NewBackend(config string) (*Backend, error) {
	b := &Backend{
		workers: workerspool.New(),
	}
	options, err := backends.ParseOptions(config)
	if err != nil {
		return nil, err
	}
	for key, value := range options {
		switch key {
		case "max_memory":
			b.maxMemory, err = humanize.ParseBytes(value)
			if err != nil {
				return nil, errors.Wrapf(err, "backend %q: invalid value for max_memory=%q", BackendName, value)
			}
		case "parallelism":
			parallelism, err := strconv.Atoi(value)
			if err != nil {
				return nil, errors.Wrapf(err, "backend %q: invalid value for parallelism=%q", BackendName, value)
			}
			b.workers.SetMaxParallelism(parallelism)
		default:
			return nil, errors.Errorf("backend %q: unknown configuration option %q", BackendName, key)
		}
	}
	klog.V(1).Infof("created backend %s", b.Description())
	return b, nil
}

// Backend implements the backends.Backend interface.
type Backend struct {
	// bufferPools are a map to pools of buffers that can be reused.
	// The underlying type is map[bufferPoolKey]*sync.Pool.
	bufferPools sync.Map

	workers *workerspool.Pool

	// maxMemory for the live buffers, 0 if unlimited.
	maxMemory uint64

	liveBuffers, liveBytes     atomic.Int64
	allocations, finalizations atomic.Int64
	isFinalized                atomic.Bool
}

// Compile-time check that simplego.Backend implements backends.Backend.
var (
	_ backends.Backend        = (*Backend)(nil)
	_ backends.MemoryReporter = (*Backend)(nil)
)

// Name returns the short name of the backend.
func (b *Backend) Name() string {
	return BackendName
}

// String implement fmt.Stringer.
func (b *Backend) String() string { return BackendName }

// Description is a longer description of the Backend that can be used to pretty-print.
func (b *Backend) Description() string {
	memory := "unlimited"
	if b.maxMemory > 0 {
		memory = humanize.IBytes(b.maxMemory)
	}
	return fmt.Sprintf("SimpleGo portable backend (max_memory=%s, parallelism=%d)", memory, b.workers.MaxParallelism())
}

// MemoryStats implements backends.MemoryReporter.
func (b *Backend) MemoryStats() backends.MemoryStats {
	return backends.MemoryStats{
		LiveBuffers:   b.liveBuffers.Load(),
		LiveBytes:     b.liveBytes.Load(),
		Allocations:   b.allocations.Load(),
		Finalizations: b.finalizations.Load(),
	}
}

// Finalize releases all the associated resources immediately, and makes the backend invalid.
//
// Buffers still alive are not freed (they are Go memory), but they become unusable.
func (b *Backend) Finalize() {
	if b.isFinalized.Swap(true) {
		return
	}
	b.bufferPools.Clear()
	if live := b.liveBuffers.Load(); live > 0 {
		klog.V(1).Infof("backend %q finalized with %d live buffers (%s)", BackendName, live,
			humanize.IBytes(uint64(b.liveBytes.Load())))
	}
}

// IsFinalized returns whether Finalize was called.
func (b *Backend) IsFinalized() bool {
	return b.isFinalized.Load()
}

func (b *Backend) checkFinalized() error {
	if b.isFinalized.Load() {
		return errors.Errorf("backend %q has already been finalized", BackendName)
	}
	return nil
}
