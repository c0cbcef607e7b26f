package apierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestFromPreservesKindThroughWrapping(t *testing.T) {
	base := Conflict("active_job_exists", "busy")
	wrapped := fmt.Errorf("Failed to create job: %w", base)

	got := From(wrapped)
	if got.Kind != KindConflict || got.Code != "active_job_exists" {
		t.Fatalf("From(wrapped) = %+v, want original conflict", got)
	}
	if KindOf(wrapped) != KindConflict {
		t.Fatalf("KindOf(wrapped) = %s, want conflict", KindOf(wrapped))
	}
}

func TestFromWrapsUnknownAsInternal(t *testing.T) {
	plain := errors.New("disk on fire")
	got := From(plain)
	if got.Kind != KindInternal || got.Code != "internal_error" {
		t.Fatalf("From(plain) = %+v, want internal", got)
	}
	if !errors.Is(got, plain) {
		t.Fatal("original error lost in wrapping")
	}
}

func TestFromNil(t *testing.T) {
	if From(nil) != nil {
		t.Fatal("From(nil) should be nil")
	}
	if KindOf(nil) != "" {
		t.Fatal("KindOf(nil) should be empty")
	}
}

func TestWithDetailAccumulates(t *testing.T) {
	err := Conflict("insufficient_stock", "short").
		WithDetail("slot", 2).
		WithDetail("required_grams", 40.0)
	if err.Details["slot"] != 2 {
		t.Fatalf("details = %v, want slot detail kept", err.Details)
	}
	if len(err.Details) != 2 {
		t.Fatalf("details = %v, want two entries", err.Details)
	}
}
