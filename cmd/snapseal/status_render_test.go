package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestDetailPrinterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := &detailPrinter{out: &buf}

	p.section("Queue")
	p.line(kindGood, "Session", "logged in")

	out := buf.String()
	if !strings.Contains(out, "Queue\n") {
		t.Fatalf("missing section title:\n%s", out)
	}
	if !strings.Contains(out, "─────") {
		t.Fatalf("missing section underline:\n%s", out)
	}
	if !strings.Contains(out, "Session") || !strings.Contains(out, "logged in") {
		t.Fatalf("missing detail line:\n%s", out)
	}
	if strings.Contains(out, colorGreen) {
		t.Fatalf("non-terminal output should carry no color codes:\n%s", out)
	}
}

func TestDetailPrinterColorizesValueOnly(t *testing.T) {
	var buf bytes.Buffer
	p := &detailPrinter{out: &buf, colorize: true}

	p.line(kindBad, "Failed", "3")

	out := buf.String()
	if !strings.Contains(out, colorRed+"3"+colorReset) {
		t.Fatalf("expected red value:\n%q", out)
	}
	if strings.Contains(out, colorRed+"Failed") {
		t.Fatalf("label must stay uncolored:\n%q", out)
	}
}

func TestDetailPrinterBufferIsNotTerminal(t *testing.T) {
	p := newDetailPrinter(&bytes.Buffer{})
	if p.colorize {
		t.Fatal("a bytes.Buffer must not be treated as a terminal")
	}
}
