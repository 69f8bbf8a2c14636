// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/ndarray/pkg/core/gateway"
	"github.com/muesli/termenv"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
	oddRowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).PaddingLeft(1).PaddingRight(1)
)

func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				return s.Align(lipgloss.Right)
			}
			return s.Align(lipgloss.Left)
		})
}

func comma(value int64) string { return humanize.Comma(value) }

// report prints the workload and gateway statistics, and the verdict on leaked buffers.
func report(gw *gateway.Gateway, stats workloadStats, leaked int64) {
	fmt.Println(titleStyle.Render("Workload"))
	table := newPlainTable()
	table.Row("backend", gw.Backend().Name())
	table.Row("root tensors", comma(int64(stats.Roots)))
	table.Row("derived views", comma(int64(stats.Views)))
	table.Row("operation results", comma(int64(stats.Operations)))
	table.Row("finalized", comma(int64(stats.Finalized)))
	table.Row("dropped (left to GC)", comma(int64(stats.Dropped)))
	table.Row("elapsed", stats.Elapsed.String())
	fmt.Println(table.Render())

	fmt.Println(titleStyle.Render("Gateway"))
	crossings := gw.Stats()
	table = newPlainTable()
	table.Row("crossings", comma(crossings.Crossings))
	table.Row("executions", comma(crossings.Executions))
	table.Row("allocations", comma(crossings.Allocations))
	table.Row("imports", comma(crossings.Imports))
	table.Row("releases", comma(crossings.Releases))
	table.Row("data accesses", comma(crossings.DataAccesses))
	if memory, ok := gw.MemoryStats(); ok {
		table.Row("backend allocations", comma(memory.Allocations))
		table.Row("backend finalizations", comma(memory.Finalizations))
		table.Row("live buffers", comma(memory.LiveBuffers))
		table.Row("live memory", humanize.IBytes(uint64(memory.LiveBytes)))
	}
	fmt.Println(table.Render())

	output := termenv.NewOutput(os.Stdout)
	var verdict termenv.Style
	if leaked == 0 {
		verdict = output.String("OK: all buffers released exactly once").Foreground(output.Color("10")).Bold()
	} else {
		verdict = output.String(fmt.Sprintf("LEAK: %d buffers still live", leaked)).Foreground(output.Color("9")).Bold()
	}
	fmt.Println(verdict)
}
