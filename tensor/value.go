package tensor

import "fmt"

// Value is a concrete structured value conforming to some Spec: a
// Tensor leaf or a Struct composite.
type Value interface {
	value()
}

// Tensor is a dense leaf. Element data lives in Floats for the
// floating-point dtypes and in Ints for Int32; exactly one of the two
// slices is populated. Data is stored flat in row-major order.
type Tensor struct {
	DType  DType
	Shape  Shape
	Floats []float64
	Ints   []int32
}

func (Tensor) value() {}

// NewTensor builds a floating-point leaf. The data slice length must
// match the shape's element count.
func NewTensor(dtype DType, shape Shape, data []float64) Tensor {
	return Tensor{DType: dtype, Shape: shape, Floats: data}
}

// NewIntTensor builds an Int32 leaf.
func NewIntTensor(shape Shape, data []int32) Tensor {
	return Tensor{DType: Int32, Shape: shape, Ints: data}
}

// Scalar builds a rank-zero floating-point leaf.
func Scalar(dtype DType, v float64) Tensor {
	return Tensor{DType: dtype, Floats: []float64{v}}
}

// ScalarInt builds a rank-zero Int32 leaf.
func ScalarInt(v int32) Tensor {
	return Tensor{DType: Int32, Ints: []int32{v}}
}

// NumElements returns the element count implied by the shape.
func (t Tensor) NumElements() int {
	return t.Shape.NumElements()
}

func (t Tensor) validate(path string) error {
	want := t.Shape.NumElements()
	var got int
	if t.DType == Int32 {
		got = len(t.Ints)
	} else {
		got = len(t.Floats)
	}
	if got != want {
		return &TypeError{Path: path, Reason: fmt.Sprintf("%d elements, shape %v wants %d", got, t.Shape, want)}
	}
	return nil
}

// ValueField pairs a (possibly empty) field name with a sub-value.
type ValueField struct {
	Name  string
	Value Value
}

// Struct is an ordered composite of sub-values.
type Struct struct {
	Fields []ValueField
}

func (Struct) value() {}

// Named is a convenience constructor for one struct field.
func Named(name string, v Value) ValueField {
	return ValueField{Name: name, Value: v}
}

// SpecOf derives the Spec a value conforms to.
func SpecOf(v Value) Spec {
	switch val := v.(type) {
	case Tensor:
		return TensorSpec{DType: val.DType, Shape: val.Shape}
	case Struct:
		fields := make([]Field, len(val.Fields))
		for i, f := range val.Fields {
			fields[i] = Field{Name: f.Name, Spec: SpecOf(f.Value)}
		}
		return StructSpec{Fields: fields}
	default:
		return nil
	}
}

// MapLeaves applies fn to every tensor leaf of v and rebuilds the same
// nesting around the results. The walk is depth-first in field order;
// fn sees each leaf exactly once.
func MapLeaves(v Value, fn func(Tensor) (Tensor, error)) (Value, error) {
	switch val := v.(type) {
	case Tensor:
		return fn(val)
	case Struct:
		fields := make([]ValueField, len(val.Fields))
		for i, f := range val.Fields {
			mapped, err := MapLeaves(f.Value, fn)
			if err != nil {
				return nil, err
			}
			fields[i] = ValueField{Name: f.Name, Value: mapped}
		}
		return Struct{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

// MapLeavesWithSpec walks v and spec in lockstep, handing fn each leaf
// together with the matching spec leaf. Used by the decoder, which
// needs the original element kind for every position.
func MapLeavesWithSpec(v Value, spec Spec, fn func(Tensor, TensorSpec) (Tensor, error)) (Value, error) {
	switch val := v.(type) {
	case Tensor:
		leafSpec, ok := spec.(TensorSpec)
		if !ok {
			return nil, fmt.Errorf("value is a tensor leaf but spec is %T", spec)
		}
		return fn(val, leafSpec)
	case Struct:
		structSpec, ok := spec.(StructSpec)
		if !ok {
			return nil, fmt.Errorf("value is a struct but spec is %T", spec)
		}
		if len(val.Fields) != len(structSpec.Fields) {
			return nil, fmt.Errorf("struct has %d fields, spec has %d", len(val.Fields), len(structSpec.Fields))
		}
		fields := make([]ValueField, len(val.Fields))
		for i, f := range val.Fields {
			mapped, err := MapLeavesWithSpec(f.Value, structSpec.Fields[i].Spec, fn)
			if err != nil {
				return nil, err
			}
			fields[i] = ValueField{Name: f.Name, Value: mapped}
		}
		return Struct{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", v)
	}
}

// ZipLeaves walks two structurally identical values in lockstep,
// calling fn on every leaf pair.
func ZipLeaves(a, b Value, fn func(Tensor, Tensor) error) error {
	switch av := a.(type) {
	case Tensor:
		bv, ok := b.(Tensor)
		if !ok {
			return fmt.Errorf("structure mismatch: tensor vs %T", b)
		}
		if !av.Shape.Equal(bv.Shape) {
			return fmt.Errorf("shape mismatch: %v vs %v", av.Shape, bv.Shape)
		}
		return fn(av, bv)
	case Struct:
		bv, ok := b.(Struct)
		if !ok {
			return fmt.Errorf("structure mismatch: struct vs %T", b)
		}
		if len(av.Fields) != len(bv.Fields) {
			return fmt.Errorf("field count mismatch: %d vs %d", len(av.Fields), len(bv.Fields))
		}
		for i := range av.Fields {
			if err := ZipLeaves(av.Fields[i].Value, bv.Fields[i].Value, fn); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value %T", a)
	}
}

// ZipMapLeaves combines two structurally identical values leaf by
// leaf, rebuilding the shared nesting around fn's outputs.
func ZipMapLeaves(a, b Value, fn func(Tensor, Tensor) (Tensor, error)) (Value, error) {
	switch av := a.(type) {
	case Tensor:
		bv, ok := b.(Tensor)
		if !ok {
			return nil, fmt.Errorf("structure mismatch: tensor vs %T", b)
		}
		if !av.Shape.Equal(bv.Shape) {
			return nil, fmt.Errorf("shape mismatch: %v vs %v", av.Shape, bv.Shape)
		}
		return fn(av, bv)
	case Struct:
		bv, ok := b.(Struct)
		if !ok {
			return nil, fmt.Errorf("structure mismatch: struct vs %T", b)
		}
		if len(av.Fields) != len(bv.Fields) {
			return nil, fmt.Errorf("field count mismatch: %d vs %d", len(av.Fields), len(bv.Fields))
		}
		fields := make([]ValueField, len(av.Fields))
		for i := range av.Fields {
			combined, err := ZipMapLeaves(av.Fields[i].Value, bv.Fields[i].Value, fn)
			if err != nil {
				return nil, err
			}
			fields[i] = ValueField{Name: av.Fields[i].Name, Value: combined}
		}
		return Struct{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("unsupported value %T", a)
	}
}
