package redact

import (
	"iac-crawler/internal/state"
)

// Redaction sentinels. SentinelSensitive replaces subtrees flagged by the
// tool-reported sensitivity tree; SentinelRedacted replaces values whose
// field name matches a sensitivity pattern. They are distinct so downstream
// consumers can tell the two mechanisms apart.
const (
	SentinelSensitive = "**SENSITIVE**"
	SentinelRedacted  = "**REDACTED**"
)

// Redactor produces redacted copies of resource value trees by walking them
// in lock-step with their sensitivity marker trees.
type Redactor struct {
	classifier *Classifier
}

// NewRedactor returns a redactor using the given classifier for name-based
// redaction.
func NewRedactor(c *Classifier) *Redactor {
	return &Redactor{classifier: c}
}

// Walk returns a redacted copy of value, directed by the structure of marker.
// The recursion follows the marker, not the value: anything the marker does
// not reach is passed through unchanged.
func (r *Redactor) Walk(value *state.Node, marker *state.Marker) *state.Node {
	if marker == nil {
		return value
	}

	switch marker.Kind {
	case state.MarkerTrue:
		return state.StringNode(SentinelSensitive)

	case state.MarkerObject:
		if value == nil || value.Kind != state.KindObject {
			return value
		}
		out := make(map[string]*state.Node, len(value.Object))
		for key, child := range value.Object {
			switch {
			// Name-based redaction wins over whatever the marker says.
			case r.classifier.Sensitive(key):
				out[key] = state.StringNode(SentinelRedacted)
			case marker.Object[key] != nil:
				out[key] = r.Walk(child, marker.Object[key])
			default:
				out[key] = child
			}
		}
		return &state.Node{Kind: state.KindObject, Object: out}

	case state.MarkerArray:
		if value == nil || value.Kind != state.KindArray {
			return value
		}
		// Mismatched lengths are not an error; truncate to the common prefix.
		n := min(len(value.Array), len(marker.Array))
		out := make([]*state.Node, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, r.Walk(value.Array[i], marker.Array[i]))
		}
		return &state.Node{Kind: state.KindArray, Array: out}

	default:
		// Non-true scalar marker: fail open to "not sensitive".
		return value
	}
}

// Resource replaces the resource's values with their redacted form. A missing
// sensitive_values tree is the valid "nothing flagged structurally" case; an
// empty object marker is substituted so name-based redaction of top-level
// keys still applies.
func (r *Redactor) Resource(res *state.Resource) *state.Resource {
	marker := res.SensitiveValues
	if marker == nil {
		marker = state.EmptyObjectMarker()
	}
	res.Values = r.Walk(res.Values, marker)
	return res
}
