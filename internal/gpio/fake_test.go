package gpio

import (
	"errors"
	"testing"
)

func TestFakeOutputRecordsValues(t *testing.T) {
	f := NewFakeOutput()

	if f.Level() != -1 {
		t.Errorf("expected -1 before any write, got %d", f.Level())
	}

	if err := f.SetValue(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.SetValue(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Values) != 2 || f.Values[0] != 0 || f.Values[1] != 1 {
		t.Errorf("unexpected values: %v", f.Values)
	}
	if f.Level() != 1 {
		t.Errorf("expected level 1, got %d", f.Level())
	}
}

func TestFakeOutputError(t *testing.T) {
	f := NewFakeOutput()
	f.SetError = errors.New("simulated error")

	err := f.SetValue(0)
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
	if len(f.Values) != 0 {
		t.Error("failed write must not be recorded")
	}
}

func TestFakeOutputClose(t *testing.T) {
	f := NewFakeOutput()

	if f.Closed {
		t.Error("should not be closed initially")
	}

	err := f.Close()
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}
