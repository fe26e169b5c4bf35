package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/stxfxno/listify/transfer"
)

// terminalReporter renders orchestrator feedback as colored terminal lines.
type terminalReporter struct {
	out io.Writer
}

func newTerminalReporter(out io.Writer) *terminalReporter {
	return &terminalReporter{out: out}
}

func (r *terminalReporter) Progress(pct float64) {
	fmt.Fprintln(r.out, text.FgCyan.Sprintf("Progress: %.0f%%", pct))
}

func (r *terminalReporter) Status(status string) {
	fmt.Fprintln(r.out, text.Faint.Sprint(status))
}

func (r *terminalReporter) Task(task string) {
	fmt.Fprintln(r.out, text.Bold.Sprint(task))
}

func (r *terminalReporter) Notify(msg string, kind transfer.NotifyKind) {
	switch kind {
	case transfer.NotifySuccess:
		fmt.Fprintln(r.out, text.FgGreen.Sprint(msg))
	case transfer.NotifyError:
		fmt.Fprintln(r.out, text.FgRed.Sprint(msg))
	default:
		fmt.Fprintln(r.out, msg)
	}
}
