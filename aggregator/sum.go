package aggregator

import (
	"context"
	"fmt"

	"github.com/flashbots/quantagg/tensor"
)

// MeasurementSum is the measurement key under which a sum process
// reports its own combined result.
const MeasurementSum = "sum"

// SumFactory creates stateless processes that sum contributor values
// elementwise. It accepts integer and floating-point leaf specs; the
// discretization aggregator uses it over Int32-encoded values. Int32
// summation is fixed-width: elements whose total exceeds the int32
// range wrap modulo 2^32 rather than saturate.
type SumFactory struct{}

// Create validates the spec and returns a sum process bound to it.
func (SumFactory) Create(spec tensor.Spec) (Process, error) {
	if spec == nil {
		return nil, &tensor.TypeError{Reason: "nil spec"}
	}
	return &sumProcess{spec: spec}, nil
}

type sumState struct{}

type sumProcess struct {
	spec tensor.Spec
}

func (p *sumProcess) ValueSpec() tensor.Spec { return p.spec }

func (p *sumProcess) Initialize(ctx context.Context) (State, error) {
	return sumState{}, nil
}

func (p *sumProcess) Next(ctx context.Context, state State, values []tensor.Value) (*Output, error) {
	if _, ok := state.(sumState); !ok {
		return nil, ErrForeignState
	}
	if err := checkRound(p.spec, values); err != nil {
		return nil, err
	}

	acc := values[0]
	for _, v := range values[1:] {
		combined, err := tensor.ZipMapLeaves(acc, v, addLeaves)
		if err != nil {
			return nil, fmt.Errorf("summing contributor values: %w", err)
		}
		acc = combined
	}
	// Copy the accumulator when only one contributor participated, so
	// the output never aliases caller-owned data.
	if len(values) == 1 {
		copied, err := tensor.MapLeaves(acc, copyLeaf)
		if err != nil {
			return nil, err
		}
		acc = copied
	}

	return &Output{
		State:        sumState{},
		Result:       acc,
		Measurements: Measurements{MeasurementSum: acc},
	}, nil
}

func addLeaves(a, b tensor.Tensor) (tensor.Tensor, error) {
	if a.DType != b.DType {
		return tensor.Tensor{}, fmt.Errorf("dtype mismatch: %s vs %s", a.DType, b.DType)
	}
	if a.DType == tensor.Int32 {
		out := make([]int32, len(a.Ints))
		for i := range a.Ints {
			out[i] = a.Ints[i] + b.Ints[i]
		}
		return tensor.NewIntTensor(a.Shape, out), nil
	}
	out := make([]float64, len(a.Floats))
	for i := range a.Floats {
		out[i] = a.Floats[i] + b.Floats[i]
	}
	return tensor.NewTensor(a.DType, a.Shape, out), nil
}

func copyLeaf(t tensor.Tensor) (tensor.Tensor, error) {
	out := t
	if t.Ints != nil {
		out.Ints = append([]int32(nil), t.Ints...)
	}
	if t.Floats != nil {
		out.Floats = append([]float64(nil), t.Floats...)
	}
	return out, nil
}
