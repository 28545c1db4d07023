// Package reflection maintains the append-only reflection log.
//
// Every phase completion appends one Entry: what worked, what failed,
// pattern candidates, and metrics. Entries are never edited or deleted;
// a spec's reflection log is the union of its entries in creation order,
// and readers always fold over the full sequence rather than mutating a
// summary in place.
package reflection

import (
	"context"
	"time"
)

// Candidate is a pattern candidate captured in a reflection entry. The
// registry turns candidates into scored patterns at ingest time.
type Candidate struct {
	// Description summarizes the technique.
	Description string `yaml:"description" json:"description"`
	// Tags are applicability tags.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Entry is one append-only reflection log row.
type Entry struct {
	// ID is the unique identifier for this entry.
	ID string `yaml:"id" json:"id"`
	// SpecID is the spec this entry belongs to.
	SpecID string `yaml:"spec_id" json:"spec_id"`
	// Phase is the sequence number of the completed phase.
	Phase int `yaml:"phase" json:"phase"`
	// Worked lists what went well.
	Worked []string `yaml:"worked,omitempty" json:"worked,omitempty"`
	// Failed lists what did not.
	Failed []string `yaml:"failed,omitempty" json:"failed,omitempty"`
	// Candidates are pattern candidates for the registry.
	Candidates []Candidate `yaml:"candidates,omitempty" json:"candidates,omitempty"`
	// Metrics carries phase metrics, e.g. tasks completed or delegations used.
	Metrics map[string]int `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	// CreatedAt is when the entry was appended.
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Log is an append-only event store keyed by spec id.
type Log interface {
	// Append adds one entry. Entries are immutable once appended.
	Append(ctx context.Context, entry Entry) error

	// Entries returns all entries for a spec in creation order.
	Entries(ctx context.Context, specID string) ([]Entry, error)
}
