package program

import (
	"reflect"
	"strings"

	"github.com/wippyai/hyphen/descriptor"
	"github.com/wippyai/hyphen/errors"
	"github.com/wippyai/hyphen/schema"
)

// Op is the node variant.
type Op uint8

const (
	OpScalar Op = iota
	OpArray
	OpComposite
	OpPolymorphic
	OpNullable
	OpSkip
	OpPointer
	OpCustom
	OpFatal
)

var opNames = [...]string{
	OpScalar:      "scalar",
	OpArray:       "array",
	OpComposite:   "composite",
	OpPolymorphic: "polymorphic",
	OpNullable:    "nullable",
	OpSkip:        "skip",
	OpPointer:     "pointer",
	OpCustom:      "custom",
	OpFatal:       "fatal",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "unknown"
}

// Field is one composite member program.
type Field struct {
	Node  *Node
	Name  string
	Index []int
}

// Node is one codec program node. Nodes own no runtime state and are
// shared by every root that reaches the same descriptor.
type Node struct {
	Desc *descriptor.Descriptor
	Go   reflect.Type
	// Elem is the element of an array, the inner program of a nullable,
	// or the target of a pointer.
	Elem *Node
	// Codec is the override run by a custom node.
	Codec schema.Codec
	// Constructor builds composite values on decode, when declared.
	Constructor reflect.Value
	CodecName   string
	ClassName   string
	Reason      string
	sig         string
	Fields      []Field
	Cases       []*Node
	Entries     []errors.Entry
	Fixed       int
	TagWidth    int
	Op          Op
	Kind        schema.Kind
	// Bulk marks arrays lowered to a single counted array call.
	Bulk    bool
	Dynamic bool
}

// Signature is the structural identity routines are cached by. Composite
// signatures name the composite rather than expanding it, so signatures of
// recursive programs are finite.
func (n *Node) Signature() string {
	return n.sig
}

// Inline reports whether the node is lowered into its parent routine
// rather than called as a routine of its own.
func (n *Node) Inline() bool {
	switch n.Op {
	case OpComposite, OpPolymorphic, OpCustom:
		return false
	}
	return true
}

func (n *Node) String() string {
	switch n.Op {
	case OpScalar:
		return n.Kind.String()
	case OpArray:
		return "array(" + n.Elem.String() + ")"
	case OpNullable:
		return "nullable(" + n.Elem.String() + ")"
	case OpPointer:
		return "pointer(" + n.Elem.String() + ")"
	case OpComposite:
		return n.ClassName
	case OpPolymorphic:
		parts := make([]string, len(n.Cases))
		for i, c := range n.Cases {
			parts[i] = c.String()
		}
		return "polymorphic(" + strings.Join(parts, ", ") + ")"
	case OpCustom:
		return "custom(" + n.CodecName + ")"
	case OpSkip:
		return "skip"
	case OpFatal:
		return "fatal(" + n.Reason + ")"
	}
	return n.Op.String()
}

// TagWidth returns the discriminator width in bytes for n candidates.
func TagWidth(n int) int {
	switch {
	case n <= 1<<8:
		return 1
	case n <= 1<<16:
		return 2
	default:
		return 4
	}
}
