package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// lineKind selects the color a detail value is rendered in.
type lineKind int

const (
	kindInfo lineKind = iota
	kindGood
	kindWarn
	kindBad
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorCyan   = "\x1b[36m"
)

const detailLabelWidth = 14

// detailPrinter writes labeled key/value detail blocks, coloring values when
// the destination is a terminal.
type detailPrinter struct {
	out      io.Writer
	colorize bool
}

func newDetailPrinter(out io.Writer) *detailPrinter {
	return &detailPrinter{out: out, colorize: isTerminal(out)}
}

// section prints a title followed by an underline of the same width.
func (p *detailPrinter) section(title string) {
	title = strings.TrimSpace(title)
	if p.colorize {
		fmt.Fprintln(p.out, colorCyan+title+colorReset)
	} else {
		fmt.Fprintln(p.out, title)
	}
	fmt.Fprintln(p.out, strings.Repeat("─", len([]rune(title))))
}

// line prints one padded "label  value" row; only the value is colored.
func (p *detailPrinter) line(kind lineKind, label, value string) {
	if p.colorize {
		if color := kindColor(kind); color != "" {
			value = color + value + colorReset
		}
	}
	fmt.Fprintf(p.out, "%-*s %s\n", detailLabelWidth, label, value)
}

func kindColor(kind lineKind) string {
	switch kind {
	case kindGood:
		return colorGreen
	case kindWarn:
		return colorYellow
	case kindBad:
		return colorRed
	default:
		return ""
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
