// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"fmt"
	"sync"

	"github.com/gomlx/ndarray/backends"
	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/errs"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Handle is the shared-ownership token of one backend buffer.
//
// All views (Tensor) over the same buffer share the same *Handle, and each of them holds exactly one reference
// to it. The Handle keeps the only reference counter of the buffer: the backend itself doesn't count references.
// When the last view is finalized (explicitly or by the garbage collector) the buffer is released through the
// gateway, exactly once.
//
// Handles are created and managed by the tensors package, users only inspect them.
type Handle struct {
	id      uuid.UUID
	gateway *gateway.Gateway
	buffer  backends.Buffer
	dtype   dtypes.DType
	size    int

	// mu protects numRefs and released: cleanups of unreachable views run on a separate goroutine.
	mu       sync.Mutex
	numRefs  int
	released bool
}

// newHandle takes ownership of buffer, which holds size elements of dtype. It starts with no references.
func newHandle(gw *gateway.Gateway, buffer backends.Buffer, dtype dtypes.DType, size int) *Handle {
	h := &Handle{
		id:      uuid.New(),
		gateway: gw,
		buffer:  buffer,
		dtype:   dtype,
		size:    size,
	}
	klog.V(1).Infof("tensors: new %s", h)
	return h
}

// ID is a unique identifier of the Handle, used in logs.
func (h *Handle) ID() uuid.UUID { return h.id }

// DType of the elements of the buffer.
func (h *Handle) DType() dtypes.DType { return h.dtype }

// Size is the number of elements of the buffer.
func (h *Handle) Size() int { return h.size }

// Gateway used to reach the backend owning the buffer.
func (h *Handle) Gateway() *gateway.Gateway { return h.gateway }

// NumRefs returns the number of live views referencing the handle.
func (h *Handle) NumRefs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.numRefs
}

// IsReleased returns whether the buffer has already been released.
func (h *Handle) IsReleased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// String implements fmt.Stringer.
func (h *Handle) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.describe()
}

// describe must be called with mu locked.
func (h *Handle) describe() string {
	state := fmt.Sprintf("refs=%d", h.numRefs)
	if h.released {
		state = "released"
	}
	return fmt.Sprintf("Handle(%s, %s[%d], %s)", h.id, h.dtype, h.size, state)
}

// acquire adds a reference for a new view.
//
// It fails if the handle has already been released: views only acquire handles through a live view, so this
// is a bug.
func (h *Handle) acquire() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return errors.WithStack(&errs.InternalFault{Op: "acquire", Operands: []string{h.describe()},
			Cause: "handle already released"})
	}
	h.numRefs++
	return nil
}

// release drops the reference of one view. The last one releases the buffer through the gateway.
func (h *Handle) release() error {
	h.mu.Lock()
	if h.released || h.numRefs <= 0 {
		description := h.describe()
		h.mu.Unlock()
		return errors.WithStack(&errs.InternalFault{Op: "release", Operands: []string{description},
			Cause: "handle released more times than it was acquired"})
	}
	h.numRefs--
	if h.numRefs > 0 {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()
	klog.V(1).Infof("tensors: releasing buffer of handle %s", h.id)
	return h.gateway.Release(h.buffer)
}
