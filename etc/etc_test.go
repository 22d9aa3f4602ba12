package etc

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("NewRunID() = %q is not a uuid: %v", id, err)
	}
	if id == NewRunID() {
		t.Error("run ids should differ")
	}
}

func TestFreshName(t *testing.T) {
	a := FreshName("Noisy Take.WAV")
	b := FreshName("Noisy Take.WAV")

	if !strings.HasSuffix(a, ".wav") {
		t.Errorf("FreshName() = %q, want .wav suffix", a)
	}
	if strings.Contains(a, " ") {
		t.Errorf("FreshName() = %q kept the original base", a)
	}
	if a == b {
		t.Error("fresh names should differ")
	}
}
