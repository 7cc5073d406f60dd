package quantize

import (
	"fmt"

	"github.com/x448/float16"

	"github.com/flashbots/quantagg/tensor"
)

// OutputDType is the fixed-width integer kind every encoded leaf uses.
const OutputDType = tensor.Int32

// EncodedSpec derives the integer-typed spec corresponding to a
// floating-point value spec: identical nesting and shapes, every leaf
// re-typed to OutputDType.
func EncodedSpec(spec tensor.Spec) tensor.Spec {
	return tensor.MapSpecLeaves(spec, func(leaf tensor.TensorSpec) tensor.TensorSpec {
		return tensor.TensorSpec{DType: OutputDType, Shape: leaf.Shape}
	})
}

// Encode quantizes every element of v onto a grid of spacing step,
// rounding stochastically so the expected encoding is unbiased.
// Nesting and shapes are preserved exactly; zero-size leaves pass
// through as empty integer leaves. One fresh rounding Source serves
// the whole invocation.
func Encode(v tensor.Value, step float64) (tensor.Value, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step size must be positive, got %v", step)
	}
	src, err := NewSource()
	if err != nil {
		return nil, err
	}
	return tensor.MapLeaves(v, func(leaf tensor.Tensor) (tensor.Tensor, error) {
		if !leaf.DType.IsFloat() {
			return tensor.Tensor{}, &tensor.TypeError{Reason: fmt.Sprintf("cannot encode %s leaf", leaf.DType)}
		}
		ints := make([]int32, len(leaf.Floats))
		for i, x := range leaf.Floats {
			ints[i] = RoundInt32(x/step, src)
		}
		return tensor.NewIntTensor(leaf.Shape, ints), nil
	})
}

// Decode reverses Encode: multiplies every element by step and casts
// it back to the element kind the matching leaf of spec prescribes.
func Decode(encoded tensor.Value, step float64, spec tensor.Spec) (tensor.Value, error) {
	if step <= 0 {
		return nil, fmt.Errorf("step size must be positive, got %v", step)
	}
	return tensor.MapLeavesWithSpec(encoded, spec, func(leaf tensor.Tensor, leafSpec tensor.TensorSpec) (tensor.Tensor, error) {
		if leaf.DType != OutputDType {
			return tensor.Tensor{}, &tensor.TypeError{Reason: fmt.Sprintf("cannot decode %s leaf", leaf.DType)}
		}
		if !leafSpec.DType.IsFloat() {
			return tensor.Tensor{}, &tensor.TypeError{Reason: fmt.Sprintf("target dtype %s is not floating-point", leafSpec.DType)}
		}
		floats := make([]float64, len(leaf.Ints))
		for i, n := range leaf.Ints {
			floats[i] = CastFloat(float64(n)*step, leafSpec.DType)
		}
		return tensor.NewTensor(leafSpec.DType, leaf.Shape, floats), nil
	})
}

// CastFloat narrows x to the precision of the target element kind, so
// that a leaf tagged with dtype never carries a value the kind cannot
// represent.
func CastFloat(x float64, dtype tensor.DType) float64 {
	switch dtype {
	case tensor.Float16:
		return float64(float16.Fromfloat32(float32(x)).Float32())
	case tensor.Float32:
		return float64(float32(x))
	default:
		return x
	}
}
