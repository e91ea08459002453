// Package courts is the court lookup table the merger consults for appellate
// and bankruptcy handling, local time zones and upstream id mapping.
package courts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

//go:embed courts.yaml
var defaultCourtsYAML []byte

// Jurisdiction codes.
const (
	JurisdictionAppellate       = "F"
	JurisdictionDistrict        = "FD"
	JurisdictionBankruptcy      = "FB"
	JurisdictionBankruptcyPanel = "FBP"
	JurisdictionSpecial         = "FS"
)

type Court struct {
	ID           string `yaml:"id"`
	PacerID      string `yaml:"pacer_id"`
	Jurisdiction string `yaml:"jurisdiction"`
	Timezone     string `yaml:"timezone"`

	location *time.Location
}

type registryFile struct {
	Courts []Court `yaml:"courts"`
}

// Registry is an immutable court table, safe for concurrent use.
type Registry struct {
	byID    map[string]*Court
	byPacer map[string]string
}

// Default returns the built-in court table.
func Default() (*Registry, error) {
	return Parse(defaultCourtsYAML)
}

// Load reads a court table from path, or returns the built-in table when path
// is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read courts file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse courts: %w", err)
	}

	r := &Registry{
		byID:    make(map[string]*Court, len(file.Courts)),
		byPacer: make(map[string]string, len(file.Courts)),
	}
	for i := range file.Courts {
		c := file.Courts[i]
		if c.ID == "" {
			return nil, fmt.Errorf("court %d has no id", i)
		}
		if _, dup := r.byID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate court id %q", c.ID)
		}
		loc := time.UTC
		if c.Timezone != "" {
			l, err := time.LoadLocation(c.Timezone)
			if err != nil {
				return nil, fmt.Errorf("court %s: %w", c.ID, err)
			}
			loc = l
		}
		c.location = loc
		r.byID[c.ID] = &c
		if c.PacerID != "" && c.PacerID != c.ID {
			r.byPacer[c.PacerID] = c.ID
		}
	}
	return r, nil
}

// Get returns the court with the given id.
func (r *Registry) Get(courtID string) (*Court, bool) {
	c, ok := r.byID[courtID]
	return c, ok
}

func (r *Registry) Exists(courtID string) bool {
	_, ok := r.byID[courtID]
	return ok
}

func (r *Registry) IsAppellate(courtID string) bool {
	c, ok := r.byID[courtID]
	return ok && c.Jurisdiction == JurisdictionAppellate
}

func (r *Registry) IsBankruptcy(courtID string) bool {
	c, ok := r.byID[courtID]
	return ok && (c.Jurisdiction == JurisdictionBankruptcy || c.Jurisdiction == JurisdictionBankruptcyPanel)
}

// Location is the court's local time zone, UTC for unknown courts.
func (r *Registry) Location(courtID string) *time.Location {
	if c, ok := r.byID[courtID]; ok {
		return c.location
	}
	return time.UTC
}

// MapPacerToID converts an upstream court id to ours. Ids that need no
// mapping come back lowercased and otherwise unchanged.
func (r *Registry) MapPacerToID(pacerID string) string {
	id := strings.ToLower(strings.TrimSpace(pacerID))
	if mapped, ok := r.byPacer[id]; ok {
		return mapped
	}
	return id
}

// LocalDate converts t to the court's local calendar date, returned as UTC
// midnight so that it compares equal to stored dates. Times that carry no
// clock are taken as already local.
func (r *Registry) LocalDate(courtID string, t time.Time, hasClock bool) time.Time {
	if hasClock {
		t = t.In(r.Location(courtID))
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
