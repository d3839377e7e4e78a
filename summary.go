package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"SigMap/offsets"
)

var (
	colorModule = color.New(color.Bold, color.FgHiBlue).SprintFunc()
	colorOK     = color.New(color.FgHiGreen).SprintfFunc()
	colorStale  = color.New(color.FgYellow).SprintFunc()
)

// printSummary lists the resolved count per module and the names whose
// signatures no longer match.
func printSummary(w io.Writer, m *offsets.Map, targets []offsets.Target) {
	total, outdated := 0, 0
	for _, t := range targets {
		found, ok := m.Module(t.Module)
		if !ok {
			continue
		}
		total += found.Len()
		stale := t.Registry.Missing(found)
		outdated += len(stale)

		fmt.Fprintf(w, "%s %s\n", colorModule(t.Module), colorOK("%d offsets", found.Len()))
		if len(stale) > 0 {
			fmt.Fprintf(w, "  outdated: %s\n", colorStale(strings.Join(stale, ", ")))
		}
	}
	fmt.Fprintf(w, "resolved %d offsets in %d modules, %d outdated\n", total, m.Len(), outdated)
}
