package state

import (
	"bytes"
	"encoding/json"
)

// MarkerKind discriminates the shapes of a sensitivity marker node.
type MarkerKind uint8

const (
	// MarkerNone covers every scalar marker that is not the literal true.
	// Terraform never emits these, but if one shows up it means "not
	// sensitive" at that leaf.
	MarkerNone MarkerKind = iota
	// MarkerTrue flags the corresponding value subtree as fully sensitive.
	MarkerTrue
	MarkerObject
	MarkerArray
)

// Marker is one node of the sensitivity tree that shadows a resource's value
// tree. Its shape mirrors (a subset of) the value tree it accompanies.
type Marker struct {
	Kind   MarkerKind
	Object map[string]*Marker
	Array  []*Marker
}

// EmptyObjectMarker returns the marker used when a resource reports no
// sensitive_values: an object with no flagged keys.
func EmptyObjectMarker() *Marker {
	return &Marker{Kind: MarkerObject}
}

func (m *Marker) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		m.Kind = MarkerNone
		return nil
	}

	switch trimmed[0] {
	case '{':
		obj := make(map[string]*Marker)
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		m.Kind = MarkerObject
		m.Object = obj
	case '[':
		var arr []*Marker
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		m.Kind = MarkerArray
		m.Array = arr
	default:
		if bytes.Equal(trimmed, []byte("true")) {
			m.Kind = MarkerTrue
		} else {
			m.Kind = MarkerNone
		}
	}
	return nil
}
