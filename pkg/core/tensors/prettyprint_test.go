// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"math"
	"testing"

	"github.com/gomlx/ndarray/pkg/core/dtypes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	gw := newTestGateway(t)

	x := MustIota(gw, dtypes.Int32, 2, 3)
	assert.Equal(t, "(Int32)[2 3]: [[0, 1, 2],\n [3, 4, 5]]", x.String())
	assert.Equal(t, "(Int32)[3 2]: [[0, 3],\n [1, 4],\n [2, 5]]", must.M1(x.T()).Summary())
	assert.Equal(t, "(Int32)[2 1 2]: [[[0, 1]],\n [[3, 4]]]",
		must.M1(x.Slice(AxisRange(), AxisRange(0, 2))).MustReshape(2, 1, 2).String())

	assert.Equal(t, "(Float32)(7)", MustFromValue(gw, float32(7)).String())
	assert.Equal(t, "(Float64)[3]: [0.5, -1, 3.142]",
		MustFromFlatData(gw, []float64{0.5, -1, math.Pi}, 3).String())
	assert.Equal(t, "(Float64)[1]: [3.14159]",
		MustFromFlatData(gw, []float64{math.Pi}, 1).Format(PrintOptions{Precision: 6}))
	assert.Equal(t, "(Bool)[2]: [true, false]", MustFromFlatData(gw, []bool{true, false}, 2).String())
	assert.Equal(t, "(Float16)[2]: [0, 1]", MustIota(gw, dtypes.Float16, 2).String())
	assert.Equal(t, "(Uint8)[0 3]", MustZeros(gw, dtypes.Uint8, 0, 3).String())

	// Summarized axes.
	long := MustIota(gw, dtypes.Int64, 10)
	assert.Equal(t, "(Int64)[10]: [0, 1, 2, ..., 7, 8, 9]", long.String())
	assert.Equal(t, "(Int64)[10]: [0, ..., 9]", long.Format(PrintOptions{EdgeItems: 1, Threshold: 2}))
	assert.Equal(t, "(Int64)[10] (80 B): [0, 1, 2, 3, 4, 5, 6, 7, 8, 9]",
		long.Format(PrintOptions{Threshold: 10, ShowMemory: true}))
	tall := MustIota(gw, dtypes.Int8, 8, 1)
	assert.Equal(t, "(Int8)[8 1]: [[0],\n [1],\n [2],\n ...,\n [5],\n [6],\n [7]]", tall.String())

	// Invalid tensors.
	long.MustFinalize()
	assert.Contains(t, long.String(), "<invalid tensor:")
}
