// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/x448/float16"
)

// PrintOptions configures how Format prints the contents of a tensor.
type PrintOptions struct {
	// Precision is the number of significant digits of floats.
	Precision int

	// EdgeItems is the number of items printed at the start and at the end of an axis, when it is summarized.
	EdgeItems int

	// Threshold is the maximum dimension of an axis printed in full: larger axes are summarized with "...".
	Threshold int

	// ShowMemory appends the memory used by the elements, in human-readable form.
	ShowMemory bool
}

// DefaultPrintOptions is used by Tensor.String and Tensor.Summary.
//
// It is process-wide: prefer passing explicit options to Tensor.Format.
var DefaultPrintOptions = PrintOptions{Precision: 4, EdgeItems: 3, Threshold: 6}

var typeFloat16 = reflect.TypeOf(float16.Float16(0))

// Summary returns a multi-line summary of the Tensor's content, with DefaultPrintOptions.
func (t *Tensor) Summary() string {
	return t.Format(DefaultPrintOptions)
}

// Format returns a multi-line description of the Tensor's content, inspired by numpy output.
//
// It reads the contents of the tensor (one data access through the gateway), in case of errors it returns the
// error message.
func (t *Tensor) Format(opts PrintOptions) string {
	if err := t.CheckValid(); err != nil {
		return fmt.Sprintf("<invalid tensor: %v>", err)
	}
	var buf bytes.Buffer
	w := func(format string, args ...any) { _, _ = fmt.Fprintf(&buf, format, args...) }
	w("%s", t.shape)
	if opts.ShowMemory {
		w(" (%s)", humanize.IBytes(uint64(t.Memory())))
	}
	if t.shape.IsZeroSize() {
		return buf.String()
	}
	flat, err := t.ExtractContiguous()
	if err != nil {
		return fmt.Sprintf("%s <failed to read contents: %v>", buf.String(), err)
	}
	values := reflect.ValueOf(flat)

	wValue := func(v reflect.Value) {
		if v.Type() == typeFloat16 {
			w("%.*g", opts.Precision, v.Interface().(float16.Float16).Float32())
			return
		}
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			w("%d", v.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			w("%d", v.Uint())
		case reflect.Bool:
			w("%v", v.Bool())
		default:
			w("%.*g", opts.Precision, v.Interface())
		}
	}

	dims := t.shape.Dimensions
	if len(dims) == 0 {
		w("(")
		wValue(values.Index(0))
		w(")")
		return buf.String()
	}
	w(": ")

	// visible returns the indices of an axis of dimension dim to print; -1 marks the ellipsis.
	visible := func(dim int) []int {
		indices := make([]int, 0, dim)
		if dim <= opts.Threshold || opts.EdgeItems <= 0 || dim <= 2*opts.EdgeItems {
			for ii := range dim {
				indices = append(indices, ii)
			}
			return indices
		}
		for ii := range opts.EdgeItems {
			indices = append(indices, ii)
		}
		indices = append(indices, -1)
		for ii := dim - opts.EdgeItems; ii < dim; ii++ {
			indices = append(indices, ii)
		}
		return indices
	}

	var printAxis func(start, axis int)
	printAxis = func(start, axis int) {
		dim := dims[axis]
		stride := 1
		for _, d := range dims[axis+1:] {
			stride *= d
		}
		lastAxis := axis == len(dims)-1
		indent := strings.Repeat(" ", axis+1)
		w("[")
		for ii, idx := range visible(dim) {
			if ii > 0 {
				if lastAxis {
					w(", ")
				} else {
					w(",\n%s", indent)
				}
			}
			if idx < 0 {
				w("...")
				continue
			}
			if lastAxis {
				wValue(values.Index(start + idx))
			} else {
				printAxis(start+idx*stride, axis+1)
			}
		}
		w("]")
	}
	printAxis(0, 0)
	return buf.String()
}
