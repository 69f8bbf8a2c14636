// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// ndarray_stress creates, derives and finalizes random views over backend buffers, and reports the gateway
// crossings and the backend memory usage.
//
// It exits with status 1 if any buffer is still live at the end, once all views are finalized or unreachable.
//
// Usage:
//
//	ndarray_stress -steps=1000 -views=8 -gc_fraction=0.3
//	NDARRAY_BACKEND="go:max_memory=64MiB" ndarray_stress -npz=/tmp/last.npz
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gomlx/ndarray/backends"
	_ "github.com/gomlx/ndarray/backends/default"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagSteps      = flag.Int("steps", 1000, "Number of steps: each step creates a root tensor and derives views from it.")
	flagViews      = flag.Int("views", 8, "Number of views derived at each step.")
	flagMaxDim     = flag.Int("max_dim", 6, "Maximum dimension of the axes of root tensors.")
	flagGCFraction = flag.Float64("gc_fraction", 0.25,
		"Fraction of the views that are dropped without Finalize, to be released by the garbage collector.")
	flagSeed    = flag.Uint64("seed", 42, "Seed of the random workload.")
	flagNpz     = flag.String("npz", "", "If set, the tensors of the last step are saved to this .npz file.")
	flagTimeout = flag.Duration("gc_timeout", 10*time.Second,
		"How long to wait for the garbage collector to release dropped views at the end.")
	flagNoProgress = flag.Bool("no_progress", false, "Disable the progress bar.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	gw := must.M1(gateway.Default())
	klog.V(1).Infof("using backend %q (config from $%s)", gw.Backend().Name(), backends.ConfigEnvVar)

	config := workloadConfig{
		Steps:      *flagSteps,
		Views:      *flagViews,
		MaxDim:     *flagMaxDim,
		GCFraction: *flagGCFraction,
		Seed:       *flagSeed,
		NpzPath:    *flagNpz,
	}
	var bar *progressbar.ProgressBar
	if !*flagNoProgress {
		bar = newProgressBar(config.Steps)
	}
	start := time.Now()
	stats, err := runWorkload(gw, config, func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		klog.Errorf("workload failed: %+v", err)
		os.Exit(1)
	}
	stats.Elapsed = time.Since(start)
	leaked := waitForRelease(gw, *flagTimeout)
	report(gw, stats, leaked)
	if leaked > 0 {
		os.Exit(1)
	}
}

func newProgressBar(steps int) *progressbar.ProgressBar {
	return progressbar.NewOptions(steps,
		progressbar.OptionSetDescription("stress"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetWriter(os.Stderr),
	)
}
