// Package checkpoint holds the durable sync-progress model. Each provider
// owns one checkpoint variant capturing exactly the cursors, work queues and
// dedupe sets needed to resume that provider's sync after a crash or a
// deliberate stop. Variants serialize through a tagged-union wire format
// (see Serialize/Deserialize); outside this package a checkpoint is opaque.
package checkpoint

import (
	"encoding/json"
	"sort"
	"time"
)

// Checkpoint is the contract every variant implements. Checkpoints are
// mutated in place by the provider during a sync run and persisted by the
// calling collaborator; a provider never persists one itself.
type Checkpoint interface {
	// Type returns the wire discriminator for this variant.
	Type() string

	// Base returns the shared progress record.
	Base() *ConnectorCheckpoint

	// MarkRetrieved records that an item has been processed. It returns
	// true on the first sighting of sourceID and increments the processed
	// counter; every later call with the same ID returns false.
	MarkRetrieved(sourceID string) bool
}

// ConnectorCheckpoint is the progress record shared by every variant.
type ConnectorCheckpoint struct {
	// HasMore is true while the sync loop should keep running.
	HasMore bool `json:"has_more"`

	// LastSyncStart is stamped at the start of every sync call.
	LastSyncStart time.Time `json:"last_sync_start"`

	// ErrorCount counts per-item recoverable failures. Protocol-level
	// failures raise instead of incrementing it.
	ErrorCount int `json:"error_count"`

	// DocumentsProcessed counts first-time processings of items.
	DocumentsProcessed int `json:"documents_processed"`
}

// NewBase returns a fresh base record. HasMore defaults to true so a new
// checkpoint drives at least one sync pass.
func NewBase() ConnectorCheckpoint {
	return ConnectorCheckpoint{HasMore: true}
}

// Base returns the record itself, satisfying the Checkpoint interface for
// embedding variants.
func (c *ConnectorCheckpoint) Base() *ConnectorCheckpoint { return c }

// markRetrieved is the shared dedupe implementation behind every variant's
// MarkRetrieved.
func (c *ConnectorCheckpoint) markRetrieved(set StringSet, id string) bool {
	if !set.Add(id) {
		return false
	}
	c.DocumentsProcessed++
	return true
}

// StringSet is a dedupe set of item IDs. It serializes as an unordered JSON
// string array (sorted for determinism); set semantics are what matters.
type StringSet map[string]struct{}

// NewStringSet returns an empty set.
func NewStringSet(ids ...string) StringSet {
	s := make(StringSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether it was newly added.
func (s StringSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Contains reports whether id is in the set.
func (s StringSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of IDs in the set.
func (s StringSet) Len() int { return len(s) }

// MarshalJSON encodes the set as a sorted string array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return json.Marshal(ids)
}

// UnmarshalJSON decodes a string array into the set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	out := make(StringSet, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	*s = out
	return nil
}
