package crtc

import (
	"strings"
	"testing"
)

func TestErrorCapturesLocation(t *testing.T) {
	err := NewError("something failed")

	if err.Message() != "something failed" {
		t.Fatalf("unexpected message %q", err.Message())
	}
	if err.FileName() != "error_test.go" {
		t.Fatalf("expected error_test.go, got %q", err.FileName())
	}
	if err.LineNumber() <= 0 {
		t.Fatalf("expected positive line, got %d", err.LineNumber())
	}
}

func TestErrorRendering(t *testing.T) {
	err := Errorf("op %s failed: code %d", "dial", 7)

	s := err.Error()
	if !strings.HasPrefix(s, "error_test.go:") {
		t.Fatalf("expected file prefix, got %q", s)
	}
	if !strings.HasSuffix(s, "op dial failed: code 7") {
		t.Fatalf("expected message suffix, got %q", s)
	}
}

func TestErrorSatisfiesErrorInterface(t *testing.T) {
	var err error = NewError("as error")
	if err.Error() == "" {
		t.Fatal("empty rendering")
	}
}
