package testutil

import (
	"fmt"

	"github.com/flashbots/quantagg/tensor"
)

// ScalarSpec returns a rank-zero leaf spec.
func ScalarSpec(dtype tensor.DType) tensor.Spec {
	return tensor.TensorSpec{DType: dtype}
}

// VectorSpec returns a rank-one leaf spec of length n.
func VectorSpec(dtype tensor.DType, n int) tensor.Spec {
	return tensor.TensorSpec{DType: dtype, Shape: tensor.Shape{n}}
}

// NestedSpec mirrors the canonical mixed-precision test structure:
// a named composite of a float16 scalar, a positional composite with a
// float32 (2,2,1) tensor, and a float16 (3,3) tensor.
func NestedSpec() tensor.Spec {
	return tensor.StructSpec{Fields: []tensor.Field{
		{Name: "a", Spec: tensor.StructSpec{Fields: []tensor.Field{
			{Spec: tensor.TensorSpec{DType: tensor.Float16}},
			{Spec: tensor.StructSpec{Fields: []tensor.Field{
				{Spec: tensor.TensorSpec{DType: tensor.Float32, Shape: tensor.Shape{2, 2, 1}}},
			}}},
		}}},
		{Name: "b", Spec: tensor.TensorSpec{DType: tensor.Float16, Shape: tensor.Shape{3, 3}}},
	}}
}

// Fill builds a value conforming to spec with every element set to
// fill.
func Fill(spec tensor.Spec, fill float64) tensor.Value {
	switch s := spec.(type) {
	case tensor.TensorSpec:
		data := make([]float64, s.Shape.NumElements())
		for i := range data {
			data[i] = fill
		}
		return tensor.NewTensor(s.DType, s.Shape, data)
	case tensor.StructSpec:
		fields := make([]tensor.ValueField, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = tensor.ValueField{Name: f.Name, Value: Fill(f.Spec, fill)}
		}
		return tensor.Struct{Fields: fields}
	default:
		panic(fmt.Sprintf("unsupported spec %T", spec))
	}
}
