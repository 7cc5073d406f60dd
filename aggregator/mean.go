package aggregator

import (
	"context"
	"fmt"

	"github.com/flashbots/quantagg/tensor"
)

// UnweightedMeanFactory creates stateless processes that average
// contributor values elementwise, weighting every contributor equally.
// It requires floating-point leaf specs; the discretization aggregator
// uses it over the scalar distortion signal.
type UnweightedMeanFactory struct{}

// Create validates the spec and returns a mean process bound to it.
func (UnweightedMeanFactory) Create(spec tensor.Spec) (Process, error) {
	if err := tensor.ValidateFloat(spec); err != nil {
		return nil, err
	}
	return &meanProcess{spec: spec}, nil
}

type meanState struct{}

type meanProcess struct {
	spec tensor.Spec
}

func (p *meanProcess) ValueSpec() tensor.Spec { return p.spec }

func (p *meanProcess) Initialize(ctx context.Context) (State, error) {
	return meanState{}, nil
}

func (p *meanProcess) Next(ctx context.Context, state State, values []tensor.Value) (*Output, error) {
	if _, ok := state.(meanState); !ok {
		return nil, ErrForeignState
	}
	if err := checkRound(p.spec, values); err != nil {
		return nil, err
	}

	n := float64(len(values))
	acc, err := tensor.MapLeaves(values[0], copyLeaf)
	if err != nil {
		return nil, err
	}
	for _, v := range values[1:] {
		acc, err = tensor.ZipMapLeaves(acc, v, addLeaves)
		if err != nil {
			return nil, fmt.Errorf("averaging contributor values: %w", err)
		}
	}
	mean, err := tensor.MapLeaves(acc, func(t tensor.Tensor) (tensor.Tensor, error) {
		out := make([]float64, len(t.Floats))
		for i, x := range t.Floats {
			out[i] = x / n
		}
		return tensor.NewTensor(t.DType, t.Shape, out), nil
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		State:        meanState{},
		Result:       mean,
		Measurements: Measurements{},
	}, nil
}
