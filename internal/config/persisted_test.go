package config

import (
	"testing"

	"github.com/meshnode/meshnode/internal/storage"
)

func TestLoadGroupDefaultsEmpty(t *testing.T) {
	s := storage.NewMemStorage()
	if got := LoadGroup(s); got != "" {
		t.Errorf("expected empty group, got %q", got)
	}
}

func TestSaveGroupPreservesSelected(t *testing.T) {
	s := storage.NewMemStorage()
	if err := SaveSelected(s, "cozy"); err != nil {
		t.Fatalf("SaveSelected: %v", err)
	}
	if err := SaveGroup(s, "room"); err != nil {
		t.Fatalf("SaveGroup: %v", err)
	}
	if got := LoadGroup(s); got != "room" {
		t.Errorf("expected group room, got %q", got)
	}
	if got := LoadSelected(s); got != "cozy" {
		t.Errorf("expected SaveGroup to preserve selected preset, got %q", got)
	}
}

func TestSaveSelectedPreservesGroup(t *testing.T) {
	s := storage.NewMemStorage()
	if err := SaveGroup(s, "room"); err != nil {
		t.Fatalf("SaveGroup: %v", err)
	}
	if err := SaveSelected(s, "cozy"); err != nil {
		t.Fatalf("SaveSelected: %v", err)
	}
	if got := LoadGroup(s); got != "room" {
		t.Errorf("expected SaveSelected to preserve group, got %q", got)
	}
}

func TestLoadPhaseDefaultsZero(t *testing.T) {
	s := storage.NewMemStorage()
	if got := LoadPhase(s); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
	if err := SavePhase(s, 0.25); err != nil {
		t.Fatalf("SavePhase: %v", err)
	}
	if got := LoadPhase(s); got != 0.25 {
		t.Errorf("expected 0.25, got %v", got)
	}
}
