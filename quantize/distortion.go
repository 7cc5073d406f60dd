package quantize

import (
	"github.com/flashbots/quantagg/tensor"
)

// Distortion returns the mean squared per-element difference between a
// contributor's original value and its quantization round trip. Values
// must be structurally identical with floating-point leaves. Zero-size
// leaves contribute nothing; a value with no elements at all has zero
// distortion.
func Distortion(original, roundTripped tensor.Value) (float64, error) {
	var sum float64
	var count int
	err := tensor.ZipLeaves(original, roundTripped, func(a, b tensor.Tensor) error {
		if !a.DType.IsFloat() || !b.DType.IsFloat() {
			return &tensor.TypeError{Reason: "distortion requires floating-point leaves"}
		}
		for i := range a.Floats {
			d := a.Floats[i] - b.Floats[i]
			sum += d * d
		}
		count += len(a.Floats)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}
