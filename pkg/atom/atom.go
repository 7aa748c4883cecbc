// Package atom implements the tagged-value data model (Atom) used for
// port values, property bags, and event payloads, along with the
// per-property graph-context scope (DEFAULT/INTERNAL/EXTERNAL).
//
// Grounded on original_source/src/Forge.cpp (Forge.str's type switch is
// the source of the Kind enumeration and string-rendering rules below)
// and original_source/src/AtomReader.cpp (the recursive object decoder
// that Get/Copy lean on).
package atom

import (
	"fmt"

	"github.com/polyeffects/ingen/pkg/path"
)

// Kind tags the payload carried by an Atom.
type Kind uint8

const (
	KindNil Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
	KindURI
	KindURID
	KindPath
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindString:
		return "String"
	case KindURI:
		return "URI"
	case KindURID:
		return "URID"
	case KindPath:
		return "Path"
	case KindObject:
		return "Object"
	default:
		return "Nil"
	}
}

// Scope distinguishes intrinsic object state from view-scoped
// annotations on a per-property basis within an Object.
type Scope uint8

const (
	// ScopeDefault properties describe intrinsic, persistent state.
	ScopeDefault Scope = iota
	// ScopeInternal properties are engine-private annotations never
	// sent to clients (e.g. compiled-graph bookkeeping).
	ScopeInternal
	// ScopeExternal properties are view annotations (GUI position,
	// color) that clients may set but the engine does not interpret.
	ScopeExternal
)

// Atom is a tagged value: exactly one of the typed fields below is
// meaningful, selected by Kind.
type Atom struct {
	Kind   Kind
	Int    int32
	Float  float32
	Bool   bool
	Str    string     // String, URI, or Path payload
	URID   path.URID  // URID payload
	Object *Object     // Object payload
}

// Nil is the empty atom.
var Nil = Atom{Kind: KindNil}

func Int32(v int32) Atom     { return Atom{Kind: KindInt, Int: v} }
func Float32(v float32) Atom { return Atom{Kind: KindFloat, Float: v} }
func Bool(v bool) Atom       { return Atom{Kind: KindBool, Bool: v} }
func String(v string) Atom   { return Atom{Kind: KindString, Str: v} }
func URIVal(v string) Atom   { return Atom{Kind: KindURI, Str: v} }
func PathVal(v path.Path) Atom {
	return Atom{Kind: KindPath, Str: string(v)}
}
func URIDVal(v path.URID) Atom { return Atom{Kind: KindURID, URID: v} }
func ObjectVal(o *Object) Atom { return Atom{Kind: KindObject, Object: o} }

// IsNil reports whether a carries no value.
func (a Atom) IsNil() bool { return a.Kind == KindNil }

// AsFloat64 coerces numeric-ish atoms (Int, Float, Bool) to float64,
// which is how port control values and CC-mapped ranges are represented
// internally. Non-numeric atoms return false.
func (a Atom) AsFloat64() (float64, bool) {
	switch a.Kind {
	case KindInt:
		return float64(a.Int), true
	case KindFloat:
		return float64(a.Float), true
	case KindBool:
		if a.Bool {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// String renders the atom: numbers and booleans bare, URI and Path in
// angle brackets, URID as "urid:N", String in double quotes, an Object
// as "(object)" and anything else as "()".
func (a Atom) String() string {
	switch a.Kind {
	case KindInt:
		return fmt.Sprintf("%d", a.Int)
	case KindFloat:
		return fmt.Sprintf("%g", a.Float)
	case KindBool:
		if a.Bool {
			return "true"
		}
		return "false"
	case KindURI:
		return "<" + a.Str + ">"
	case KindURID:
		return fmt.Sprintf("urid:%d", a.URID)
	case KindPath:
		return "<" + a.Str + ">"
	case KindString:
		return `"` + a.Str + `"`
	case KindObject:
		return "(object)"
	default:
		return "()"
	}
}

// Property is one key/value/scope entry of an Object's property bag.
type Property struct {
	Key   path.URI
	Value Atom
	Scope Scope
}

// Object is a property bag mapping URI keys to Atom values, each
// annotated with its graph-context scope. Property order is preserved
// for stable serialization by the (external) graph writer.
type Object struct {
	Type       path.URI
	properties []Property
	index      map[path.URI]int
}

// NewObject creates an empty object of the given RDF-ish type URI.
func NewObject(typ path.URI) *Object {
	return &Object{Type: typ, index: make(map[path.URI]int)}
}

// Set assigns key=value at the given scope, replacing any existing
// entry for key (value replacement, preserving original position).
func (o *Object) Set(key path.URI, value Atom, scope Scope) {
	if i, ok := o.index[key]; ok {
		o.properties[i].Value = value
		o.properties[i].Scope = scope
		return
	}
	o.index[key] = len(o.properties)
	o.properties = append(o.properties, Property{Key: key, Value: value, Scope: scope})
}

// Remove deletes key, if present. Reports whether it was present.
func (o *Object) Remove(key path.URI) bool {
	i, ok := o.index[key]
	if !ok {
		return false
	}
	o.properties = append(o.properties[:i], o.properties[i+1:]...)
	delete(o.index, key)
	for k, v := range o.index {
		if v > i {
			o.index[k] = v - 1
		}
	}
	return true
}

// Get returns the property value for key.
func (o *Object) Get(key path.URI) (Atom, bool) {
	if i, ok := o.index[key]; ok {
		return o.properties[i].Value, true
	}
	return Nil, false
}

// Properties returns the property list in insertion order. The slice
// must not be mutated by callers.
func (o *Object) Properties() []Property {
	return o.properties
}

// Clone deep-copies the object (used by CreateGraph/CreateBlock
// pre_process and by Copy events, which must not alias the source's
// property storage).
func (o *Object) Clone() *Object {
	c := NewObject(o.Type)
	for _, p := range o.properties {
		c.Set(p.Key, p.Value, p.Scope)
	}
	return c
}
