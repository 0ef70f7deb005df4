package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// NodeKind discriminates the three shapes a value node can take.
type NodeKind uint8

const (
	KindScalar NodeKind = iota
	KindObject
	KindArray
)

// Node is one node of a resource's attribute value tree. Objects and arrays
// hold child nodes; scalars keep the raw JSON bytes untouched so values that
// survive redaction round-trip byte-for-byte.
type Node struct {
	Kind   NodeKind
	Object map[string]*Node
	Array  []*Node
	Scalar json.RawMessage
}

// StringNode returns a scalar node holding the given string.
func StringNode(s string) *Node {
	return &Node{Kind: KindScalar, Scalar: json.RawMessage(strconv.Quote(s))}
}

// UnmarshalJSON dispatches on the leading byte of the value: '{' and '['
// produce container nodes, everything else is kept as an opaque scalar.
func (n *Node) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty value node")
	}

	switch trimmed[0] {
	case '{':
		obj := make(map[string]*Node)
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		n.Kind = KindObject
		n.Object = obj
	case '[':
		var arr []*Node
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		n.Kind = KindArray
		n.Array = arr
	default:
		n.Kind = KindScalar
		n.Scalar = append(json.RawMessage(nil), trimmed...)
	}
	return nil
}

// MarshalJSON emits the node in its original JSON form. Object keys are
// serialized in sorted order (encoding/json map behavior), which keeps the
// output deterministic.
func (n *Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindObject:
		return json.Marshal(n.Object)
	case KindArray:
		if n.Array == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(n.Array)
	default:
		if n.Scalar == nil {
			return []byte("null"), nil
		}
		return n.Scalar, nil
	}
}

// StringValue returns the scalar's string content, or "" if the node is not a
// JSON string.
func (n *Node) StringValue() string {
	if n == nil || n.Kind != KindScalar {
		return ""
	}
	var s string
	if err := json.Unmarshal(n.Scalar, &s); err != nil {
		return ""
	}
	return s
}
