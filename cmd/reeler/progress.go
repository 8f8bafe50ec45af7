package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"reeler/internal/workflow"
)

// progressPrinter renders job progress. On a terminal it rewrites a single
// line; otherwise it prints whole-decile steps so logs stay readable.
type progressPrinter struct {
	out      io.Writer
	tty      bool
	lastDec  int
	rendered bool
}

func newProgressPrinter(out *os.File) *progressPrinter {
	return &progressPrinter{
		out:     out,
		tty:     isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()),
		lastDec: -1,
	}
}

func (p *progressPrinter) Update(event workflow.ProgressEvent) {
	if p.tty {
		line := fmt.Sprintf("%s %5.1f%%", event.Stage, event.Percent)
		if event.Rate != "" {
			line += " " + event.Rate
		}
		if event.ETA != "" {
			line += " ETA " + event.ETA
		}
		fmt.Fprintf(p.out, "\r%-60s", line)
		p.rendered = true
		return
	}

	dec := int(event.Percent) / 10
	if dec > p.lastDec {
		p.lastDec = dec
		fmt.Fprintf(p.out, "%s %.0f%%\n", event.Stage, event.Percent)
	}
}

// Finish terminates the rewritten line so subsequent output starts clean.
func (p *progressPrinter) Finish() {
	if p.tty && p.rendered {
		fmt.Fprint(p.out, "\r"+strings.Repeat(" ", 60)+"\r")
	}
}
