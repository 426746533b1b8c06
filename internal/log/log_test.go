package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Printf("hello %d", 42)
	if !strings.Contains(buf.String(), "hello 42") {
		t.Fatalf("log output %q missing expected message", buf.String())
	}
}

func TestSetLoggerAndPrintf(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(New(&buf))
	defer SetLogger(Discard)

	Printf("global %s", "message")
	if !strings.Contains(buf.String(), "global message") {
		t.Fatalf("log output %q missing expected message", buf.String())
	}
}

func TestDiscardDropsOutput(t *testing.T) {
	Discard.Printf("should not panic %d", 1)
}

func TestPrefixed(t *testing.T) {
	var buf bytes.Buffer
	p := Prefixed(New(&buf), "conn-1")
	p.Printf("started")
	if !strings.Contains(buf.String(), "conn-1: started") {
		t.Fatalf("log output %q missing prefix", buf.String())
	}
}
