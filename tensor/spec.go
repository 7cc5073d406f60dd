package tensor

import (
	"fmt"
	"strings"
)

// Spec is a recursive description of a structured value: either a
// single tensor leaf or an ordered composite of sub-specs. Specs are
// fully static; there is no way to express a dynamic-length sequence
// or a function type.
type Spec interface {
	// Equal reports structural equality, including field names and
	// ordering.
	Equal(Spec) bool

	spec()
}

// TensorSpec is a leaf: an element kind plus a fixed shape.
type TensorSpec struct {
	DType DType
	Shape Shape
}

func (TensorSpec) spec() {}

func (t TensorSpec) Equal(other Spec) bool {
	o, ok := other.(TensorSpec)
	return ok && t.DType == o.DType && t.Shape.Equal(o.Shape)
}

func (t TensorSpec) String() string {
	if len(t.Shape) == 0 {
		return t.DType.String()
	}
	return fmt.Sprintf("%s%s", t.DType, t.Shape)
}

// Field is one entry of a composite spec. Name may be empty for
// positional composites; a composite mixes named and unnamed fields
// only at its own peril and validation rejects that.
type Field struct {
	Name string
	Spec Spec
}

// StructSpec is an ordered composite of sub-specs.
type StructSpec struct {
	Fields []Field
}

func (StructSpec) spec() {}

func (s StructSpec) Equal(other Spec) bool {
	o, ok := other.(StructSpec)
	if !ok || len(s.Fields) != len(o.Fields) {
		return false
	}
	for i, f := range s.Fields {
		if f.Name != o.Fields[i].Name || !f.Spec.Equal(o.Fields[i].Spec) {
			return false
		}
	}
	return true
}

func (s StructSpec) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name != "" {
			parts[i] = fmt.Sprintf("%s=%v", f.Name, f.Spec)
		} else {
			parts[i] = fmt.Sprintf("%v", f.Spec)
		}
	}
	return "<" + strings.Join(parts, ",") + ">"
}

// TypeError reports a value type that the quantization pipeline cannot
// operate on, with the path of the offending leaf.
type TypeError struct {
	Path   string
	Reason string
}

func (e *TypeError) Error() string {
	if e.Path == "" {
		return "type error: " + e.Reason
	}
	return fmt.Sprintf("type error at %s: %s", e.Path, e.Reason)
}

// ValidateFloat checks that every leaf of spec has a floating-point
// element kind and a well-formed static shape. It is the
// construction-time gate for the quantization aggregator: integer,
// boolean and string leaves are rejected with a TypeError naming the
// leaf.
func ValidateFloat(spec Spec) error {
	return validateFloat(spec, "")
}

func validateFloat(spec Spec, path string) error {
	switch s := spec.(type) {
	case TensorSpec:
		if err := s.Shape.Validate(); err != nil {
			return &TypeError{Path: path, Reason: err.Error()}
		}
		if !s.DType.IsFloat() {
			return &TypeError{Path: path, Reason: fmt.Sprintf("leaf dtype %s is not floating-point", s.DType)}
		}
		return nil
	case StructSpec:
		for i, f := range s.Fields {
			if err := validateFloat(f.Spec, childPath(path, f.Name, i)); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return &TypeError{Path: path, Reason: "nil spec"}
	default:
		return &TypeError{Path: path, Reason: fmt.Sprintf("unsupported spec %T", spec)}
	}
}

func childPath(parent, name string, index int) string {
	label := name
	if label == "" {
		label = fmt.Sprintf("[%d]", index)
	}
	if parent == "" {
		return label
	}
	if name == "" {
		return parent + label
	}
	return parent + "." + label
}

// MapSpecLeaves rebuilds spec with every leaf replaced by fn's output,
// preserving composite structure and field names.
func MapSpecLeaves(spec Spec, fn func(TensorSpec) TensorSpec) Spec {
	switch s := spec.(type) {
	case TensorSpec:
		return fn(s)
	case StructSpec:
		fields := make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = Field{Name: f.Name, Spec: MapSpecLeaves(f.Spec, fn)}
		}
		return StructSpec{Fields: fields}
	default:
		return spec
	}
}

// Check verifies that v conforms to spec: identical nesting, field
// names, leaf dtypes and shapes.
func Check(spec Spec, v Value) error {
	return check(spec, v, "")
}

func check(spec Spec, v Value, path string) error {
	switch s := spec.(type) {
	case TensorSpec:
		t, ok := v.(Tensor)
		if !ok {
			return &TypeError{Path: path, Reason: fmt.Sprintf("expected tensor leaf, got %T", v)}
		}
		if t.DType != s.DType {
			return &TypeError{Path: path, Reason: fmt.Sprintf("dtype %s, want %s", t.DType, s.DType)}
		}
		if !t.Shape.Equal(s.Shape) {
			return &TypeError{Path: path, Reason: fmt.Sprintf("shape %v, want %v", t.Shape, s.Shape)}
		}
		return t.validate(path)
	case StructSpec:
		st, ok := v.(Struct)
		if !ok {
			return &TypeError{Path: path, Reason: fmt.Sprintf("expected struct, got %T", v)}
		}
		if len(st.Fields) != len(s.Fields) {
			return &TypeError{Path: path, Reason: fmt.Sprintf("%d fields, want %d", len(st.Fields), len(s.Fields))}
		}
		for i, f := range s.Fields {
			if st.Fields[i].Name != f.Name {
				return &TypeError{Path: path, Reason: fmt.Sprintf("field %d named %q, want %q", i, st.Fields[i].Name, f.Name)}
			}
			if err := check(f.Spec, st.Fields[i].Value, childPath(path, f.Name, i)); err != nil {
				return err
			}
		}
		return nil
	default:
		return &TypeError{Path: path, Reason: fmt.Sprintf("unsupported spec %T", spec)}
	}
}
