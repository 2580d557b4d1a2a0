package config

import (
	"encoding/json"

	"github.com/meshnode/meshnode/internal/storage"
)

const (
	GroupPath = "/config.json"
	PhasePath = "/phase.json"
)

type groupDoc struct {
	Group string `json:"group"`
	// Selected is not part of the original {"group": "<name>"} schema;
	// added so the boot-time "restore last-selected preset" step has
	// somewhere durable to read from. Absent in older config.json files,
	// which simply unmarshal it to "".
	Selected string `json:"selected,omitempty"`
}

type phaseDoc struct {
	Phase float64 `json:"phase"`
}

// LoadGroup reads the persisted group tag, returning "" if none was ever
// saved (/config.json {"group": "<name>"}).
func LoadGroup(s storage.Storage) string {
	data, err := s.Read(GroupPath)
	if err != nil {
		return ""
	}
	var doc groupDoc
	if json.Unmarshal(data, &doc) != nil {
		return ""
	}
	return doc.Group
}

// SaveGroup persists the group tag, preserving any already-persisted
// selected-preset name.
func SaveGroup(s storage.Storage, group string) error {
	data, err := json.Marshal(groupDoc{Group: group, Selected: LoadSelected(s)})
	if err != nil {
		return err
	}
	return s.Write(GroupPath, data)
}

// LoadSelected reads the persisted last-selected preset/base-animation
// name, returning "" if none was ever saved.
func LoadSelected(s storage.Storage) string {
	data, err := s.Read(GroupPath)
	if err != nil {
		return ""
	}
	var doc groupDoc
	if json.Unmarshal(data, &doc) != nil {
		return ""
	}
	return doc.Selected
}

// SaveSelected persists the last-selected preset/base-animation name
// alongside the group tag in the same config.json document.
func SaveSelected(s storage.Storage, selected string) error {
	group := LoadGroup(s)
	data, err := json.Marshal(groupDoc{Group: group, Selected: selected})
	if err != nil {
		return err
	}
	return s.Write(GroupPath, data)
}

// LoadPhase reads the persisted device phase offset, defaulting to 0.
func LoadPhase(s storage.Storage) float64 {
	data, err := s.Read(PhasePath)
	if err != nil {
		return 0
	}
	var doc phaseDoc
	if json.Unmarshal(data, &doc) != nil {
		return 0
	}
	return doc.Phase
}

// SavePhase persists the device phase offset.
func SavePhase(s storage.Storage, phase float64) error {
	data, err := json.Marshal(phaseDoc{Phase: phase})
	if err != nil {
		return err
	}
	return s.Write(PhasePath, data)
}
