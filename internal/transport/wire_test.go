package transport

import (
	"bytes"
	"testing"
)

func TestWriteReadLPRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeLP(&buf, []byte("hello frame")); err != nil {
		t.Fatalf("writeLP: %v", err)
	}
	got, err := readLP(&buf)
	if err != nil {
		t.Fatalf("readLP: %v", err)
	}
	if string(got) != "hello frame" {
		t.Fatalf("got %q, want %q", got, "hello frame")
	}
}

func TestWriteReadLPEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeLP(&buf, nil); err != nil {
		t.Fatalf("writeLP: %v", err)
	}
	got, err := readLP(&buf)
	if err != nil {
		t.Fatalf("readLP: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty frame, got %q", got)
	}
}

func TestWriteReadStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeString(&buf, "alice"); err != nil {
		t.Fatalf("writeString: %v", err)
	}
	got, err := readString(&buf)
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if got != "alice" {
		t.Fatalf("got %q, want %q", got, "alice")
	}
}

func TestReadLPRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	if err := writeLP(&buf, make([]byte, 0)); err != nil {
		t.Fatalf("writeLP: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[0], corrupted[1], corrupted[2], corrupted[3] = 0xFF, 0xFF, 0xFF, 0xFF
	if _, err := readLP(bytes.NewReader(corrupted)); err != errFrameTooLarge {
		t.Fatalf("expected errFrameTooLarge, got %v", err)
	}
}
