package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEventType marks a wire message whose type is not part of the
// declared mutation set. Receivers log and ignore it so that
// forward-compatible senders cannot crash older sessions.
var ErrUnknownEventType = errors.New("unknown event type")

// Encode serializes a mutation to its wire shape: the envelope fields plus
// the kind-specific payload, flattened into one JSON object.
func Encode(m Mutation) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return data, nil
}

// Decode parses a wire message into its concrete mutation type. An unknown
// type yields ErrUnknownEventType; a malformed payload yields a plain error.
func Decode(data []byte) (Mutation, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var m Mutation
	switch env.Type {
	case TypeNodeAdded:
		m = &NodeAdded{}
	case TypeNodeUpdated:
		m = &NodeUpdated{}
	case TypeNodeMoved:
		m = &NodeMoved{}
	case TypeNodeDeleted:
		m = &NodeDeleted{}
	case TypeFieldAdded:
		m = &FieldAdded{}
	case TypeFieldUpdated:
		m = &FieldUpdated{}
	case TypeFieldDeleted:
		m = &FieldDeleted{}
	case TypeEdgeAdded:
		m = &EdgeAdded{}
	case TypeEdgeDeleted:
		m = &EdgeDeleted{}
	case TypeEdgeLabelMoved:
		m = &EdgeLabelMoved{}
	case TypeEdgeDataPatched:
		m = &EdgeDataPatched{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return m, nil
}
