package tensor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func nestedFloatSpec() Spec {
	return StructSpec{Fields: []Field{
		{Name: "a", Spec: StructSpec{Fields: []Field{
			{Spec: TensorSpec{DType: Float16}},
			{Spec: TensorSpec{DType: Float32, Shape: Shape{2, 2, 1}}},
		}}},
		{Name: "b", Spec: TensorSpec{DType: Float16, Shape: Shape{3, 3}}},
	}}
}

func TestValidateFloatAccepts(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"scalar_float32", TensorSpec{DType: Float32}},
		{"mixed_float_scalars", StructSpec{Fields: []Field{
			{Spec: TensorSpec{DType: Float16}},
			{Spec: TensorSpec{DType: Float32}},
			{Spec: TensorSpec{DType: Float64}},
		}}},
		{"nested", nestedFloatSpec()},
		{"zero_size", TensorSpec{DType: Float32, Shape: Shape{0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, ValidateFloat(tc.spec))
		})
	}
}

func TestValidateFloatRejects(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"bool", TensorSpec{DType: Bool}},
		{"string", TensorSpec{DType: String}},
		{"int32", TensorSpec{DType: Int32}},
		{"int64", TensorSpec{DType: Int64}},
		{"int_nested", StructSpec{Fields: []Field{
			{Spec: TensorSpec{DType: Int32}},
			{Spec: StructSpec{Fields: []Field{{Spec: TensorSpec{DType: Int32}}}}},
		}}},
		{"float_hiding_int", StructSpec{Fields: []Field{
			{Name: "x", Spec: TensorSpec{DType: Float32}},
			{Name: "y", Spec: TensorSpec{DType: Int64, Shape: Shape{2}}},
		}}},
		{"negative_dim", TensorSpec{DType: Float32, Shape: Shape{-1}}},
		{"nil", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFloat(tc.spec)
			require.Error(t, err)
			var typeErr *TypeError
			require.ErrorAs(t, err, &typeErr)
		})
	}
}

func TestValidateFloatErrorNamesLeaf(t *testing.T) {
	spec := StructSpec{Fields: []Field{
		{Name: "weights", Spec: TensorSpec{DType: Float32}},
		{Name: "counts", Spec: TensorSpec{DType: Int64}},
	}}
	err := ValidateFloat(spec)
	require.Error(t, err)
	require.Contains(t, err.Error(), "counts")
	require.Contains(t, err.Error(), "int64")
}

func TestSpecEqual(t *testing.T) {
	require.True(t, nestedFloatSpec().Equal(nestedFloatSpec()))

	a := TensorSpec{DType: Float32, Shape: Shape{3}}
	require.True(t, a.Equal(TensorSpec{DType: Float32, Shape: Shape{3}}))
	require.False(t, a.Equal(TensorSpec{DType: Float64, Shape: Shape{3}}))
	require.False(t, a.Equal(TensorSpec{DType: Float32, Shape: Shape{4}}))
	require.False(t, a.Equal(StructSpec{Fields: []Field{{Spec: a}}}))

	named := StructSpec{Fields: []Field{{Name: "a", Spec: a}}}
	renamed := StructSpec{Fields: []Field{{Name: "b", Spec: a}}}
	require.False(t, named.Equal(renamed))
}

func TestMapSpecLeaves(t *testing.T) {
	mapped := MapSpecLeaves(nestedFloatSpec(), func(leaf TensorSpec) TensorSpec {
		return TensorSpec{DType: Int32, Shape: leaf.Shape}
	})

	var leaves []TensorSpec
	var collect func(Spec)
	collect = func(s Spec) {
		switch spec := s.(type) {
		case TensorSpec:
			leaves = append(leaves, spec)
		case StructSpec:
			for _, f := range spec.Fields {
				collect(f.Spec)
			}
		}
	}
	collect(mapped)

	require.Len(t, leaves, 3)
	for _, leaf := range leaves {
		require.Equal(t, Int32, leaf.DType)
	}
	require.Equal(t, Shape{2, 2, 1}, leaves[1].Shape)
	require.Equal(t, Shape{3, 3}, leaves[2].Shape)
}

func TestCheckConformance(t *testing.T) {
	spec := TensorSpec{DType: Float32, Shape: Shape{2}}

	require.NoError(t, Check(spec, NewTensor(Float32, Shape{2}, []float64{1, 2})))
	require.Error(t, Check(spec, NewTensor(Float64, Shape{2}, []float64{1, 2})))
	require.Error(t, Check(spec, NewTensor(Float32, Shape{3}, []float64{1, 2, 3})))
	require.Error(t, Check(spec, NewTensor(Float32, Shape{2}, []float64{1})))
	require.Error(t, Check(spec, Struct{}))

	structSpec := StructSpec{Fields: []Field{{Name: "a", Spec: spec}}}
	require.NoError(t, Check(structSpec, Struct{Fields: []ValueField{
		{Name: "a", Value: NewTensor(Float32, Shape{2}, []float64{1, 2})},
	}}))
	require.Error(t, Check(structSpec, Struct{Fields: []ValueField{
		{Name: "b", Value: NewTensor(Float32, Shape{2}, []float64{1, 2})},
	}}))
}

func TestSpecJSONRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"scalar", TensorSpec{DType: Float32}},
		{"vector", TensorSpec{DType: Float64, Shape: Shape{7}}},
		{"nested", nestedFloatSpec()},
		{"zero_size", TensorSpec{DType: Float32, Shape: Shape{0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := MarshalSpec(tc.spec)
			require.NoError(t, err)
			decoded, err := UnmarshalSpec(raw)
			require.NoError(t, err)
			require.True(t, tc.spec.Equal(decoded), "got %v, want %v", decoded, tc.spec)
		})
	}
}
