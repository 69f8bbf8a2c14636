// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/gomlx/ndarray/pkg/core/tensors"
	"github.com/gomlx/ndarray/pkg/core/tensors/numpy"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

type workloadConfig struct {
	Steps, Views, MaxDim int
	GCFraction           float64
	Seed                 uint64
	NpzPath              string
}

// workloadStats counts what the workload did, next to the gateway counters.
type workloadStats struct {
	Roots, Views, Operations, Finalized, Dropped int
	Elapsed                                      time.Duration
}

var workloadDTypes = []dtypes.DType{dtypes.Int32, dtypes.Int64, dtypes.Uint8, dtypes.Float32, dtypes.Float64}

// runWorkload runs config.Steps steps, calling onStep after each one.
//
// At each step a random root tensor is created, and a chain of random views is derived from it, with an occasional
// operation executed by the backend. Then the views are finalized in random order, except a fraction of them which
// are just dropped.
func runWorkload(gw *gateway.Gateway, config workloadConfig, onStep func()) (stats workloadStats, err error) {
	if config.Steps < 0 || config.Views < 0 || config.MaxDim < 1 {
		return stats, errors.Errorf("invalid workload configuration %+v", config)
	}
	rng := rand.New(rand.NewPCG(config.Seed, 0))
	for step := range config.Steps {
		last := step == config.Steps-1
		views, err := runStep(gw, rng, config, &stats)
		if err != nil {
			return stats, errors.WithMessagef(err, "step %d", step)
		}
		if last && config.NpzPath != "" {
			named := make(map[string]*tensors.Tensor, len(views))
			for ii, view := range views {
				named[fmt.Sprintf("view_%02d", ii)] = view
			}
			if err = numpy.ToNpzFile(named, config.NpzPath); err != nil {
				return stats, err
			}
			klog.V(1).Infof("saved %d views of the last step to %q", len(named), config.NpzPath)
		}
		rng.Shuffle(len(views), func(i, j int) { views[i], views[j] = views[j], views[i] })
		for _, view := range views {
			if rng.Float64() < config.GCFraction {
				stats.Dropped++
				continue
			}
			if err = view.Finalize(); err != nil {
				return stats, err
			}
			stats.Finalized++
		}
		if onStep != nil {
			onStep()
		}
	}
	return stats, nil
}

// runStep creates the root and the views of one step.
func runStep(gw *gateway.Gateway, rng *rand.Rand, config workloadConfig, stats *workloadStats) ([]*tensors.Tensor, error) {
	rank := 1 + rng.IntN(3)
	dims := make([]int, rank)
	for axis := range dims {
		dims[axis] = 1 + rng.IntN(config.MaxDim)
	}
	root, err := tensors.Iota(gw, workloadDTypes[rng.IntN(len(workloadDTypes))], dims...)
	if err != nil {
		return nil, err
	}
	stats.Roots++
	views := []*tensors.Tensor{root}
	for range config.Views {
		source := views[rng.IntN(len(views))]
		view, isOp, err := deriveRandom(rng, source)
		if err != nil {
			return views, err
		}
		if isOp {
			stats.Operations++
		} else {
			stats.Views++
		}
		views = append(views, view)
	}
	return views, nil
}

// deriveRandom derives a random view of source, or, with isOp set, the result of a backend operation over it.
func deriveRandom(rng *rand.Rand, source *tensors.Tensor) (view *tensors.Tensor, isOp bool, err error) {
	dims := source.Shape().Dimensions
	switch rng.IntN(8) {
	case 0:
		view, err = source.Transpose()
	case 1:
		if len(dims) == 0 || dims[0] == 0 {
			view, err = source.ExpandDims(0)
			break
		}
		start := rng.IntN(dims[0])
		view, err = source.Slice(tensors.AxisRange(start, dims[0]).Stride(1 + rng.IntN(2)))
	case 2:
		if len(dims) == 0 {
			view, err = source.ExpandDims(0)
			break
		}
		view, err = source.Slice(tensors.AxisRange().Stride(-1))
	case 3:
		view, err = source.Flatten()
	case 4:
		view, err = source.ExpandDims(0)
	case 5:
		view, err = source.BroadcastTo(append([]int{2}, dims...)...)
	case 6:
		isOp = true
		view, err = tensors.Add(source, source)
	default:
		isOp = true
		view, err = tensors.Mean(source, tensors.WithAxes())
	}
	if err == nil {
		// Force a data access on every view: extraction through strides.
		_, err = view.Bytes()
	}
	return view, isOp, err
}

// waitForRelease runs the garbage collector until all buffers are released or the timeout is reached.
// It returns the number of buffers still live.
func waitForRelease(gw *gateway.Gateway, timeout time.Duration) int64 {
	deadline := time.Now().Add(timeout)
	for {
		runtime.GC()
		stats, ok := gw.MemoryStats()
		if !ok {
			klog.Warningf("backend %q doesn't report memory usage, can't check for leaks", gw.Backend().Name())
			return 0
		}
		if stats.LiveBuffers == 0 || time.Now().After(deadline) {
			return stats.LiveBuffers
		}
		time.Sleep(10 * time.Millisecond)
	}
}
