package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/gen-mind/echo-mind/internal/core/domain"
)

// typeField is the wire discriminator key.
const typeField = "_type"

// Serialize encodes a checkpoint as a JSON object carrying every field plus
// the _type discriminator. Timestamps are ISO-8601; dedupe sets are string
// arrays; enum-valued fields are emitted by name.
func Serialize(c Checkpoint) ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("flatten checkpoint: %w", err)
	}

	tag, err := json.Marshal(c.Type())
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint type: %w", err)
	}
	fields[typeField] = tag

	return json.Marshal(fields)
}

// Deserialize decodes a serialized checkpoint, dispatching on the _type
// discriminator. An unrecognised discriminator is a fatal error, never a
// silent default.
func Deserialize(data []byte) (Checkpoint, error) {
	var envelope struct {
		Type string `json:"_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode checkpoint envelope: %w", err)
	}

	var c interface {
		Checkpoint
		normalize()
	}

	switch envelope.Type {
	case TypeDrive:
		c = &DriveCheckpoint{}
	case TypeGraph:
		c = &GraphCheckpoint{}
	case TypeGmail:
		c = &GmailCheckpoint{}
	case TypeCalendar:
		c = &CalendarCheckpoint{}
	case TypeContacts:
		c = &ContactsCheckpoint{}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCheckpointType, envelope.Type)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decode %s checkpoint: %w", envelope.Type, err)
	}
	c.normalize()

	return c, nil
}
