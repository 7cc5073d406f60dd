package aggregator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/flashbots/quantagg/quantize"
	"github.com/flashbots/quantagg/tensor"
)

// Measurement keys reported by the discretization process.
const (
	// MeasurementQuantized carries the inner process's combined
	// integer-encoded result.
	MeasurementQuantized = "stochastic_discretization"

	// MeasurementDistortion carries the aggregated quantization
	// distortion across contributors. Absent when the factory was
	// configured without a distortion aggregation factory.
	MeasurementDistortion = "distortion"
)

// StochasticDiscretizationFactory builds the quantization aggregation
// process: contributor values are stochastically rounded onto an
// integer grid of spacing StepSize, summed by a process from Inner,
// and the sum is scaled back to the original floating-point spec.
type StochasticDiscretizationFactory struct {
	// StepSize is the quantization grid spacing. Must be positive and
	// is immutable for the lifetime of every created process.
	StepSize float64

	// Inner supplies the process that combines the integer encodings
	// across contributors. Required.
	Inner Factory

	// DistortionAgg optionally supplies the process that aggregates
	// the per-contributor distortion signal, typically an unweighted
	// mean. When nil, distortion measurement is skipped.
	DistortionAgg Factory
}

// Create validates the value spec and composes the aggregation
// process. The spec must be fully static with floating-point leaves
// only; the inner process is instantiated over the derived Int32
// encoding of the spec and the distortion process over a scalar
// float32. Both collaborator signatures are checked here, once.
func (f StochasticDiscretizationFactory) Create(spec tensor.Spec) (Process, error) {
	if f.StepSize <= 0 {
		return nil, fmt.Errorf("step size must be positive, got %v", f.StepSize)
	}
	if f.Inner == nil {
		return nil, fmt.Errorf("inner aggregation factory is required")
	}
	if err := tensor.ValidateFloat(spec); err != nil {
		return nil, err
	}

	encodedSpec := quantize.EncodedSpec(spec)
	inner, err := f.Inner.Create(encodedSpec)
	if err != nil {
		return nil, fmt.Errorf("creating inner process: %w", err)
	}
	if err := VerifySignature(inner, encodedSpec); err != nil {
		return nil, fmt.Errorf("inner process: %w", err)
	}

	var distortion Process
	if f.DistortionAgg != nil {
		scalarSpec := tensor.TensorSpec{DType: tensor.Float32}
		distortion, err = f.DistortionAgg.Create(scalarSpec)
		if err != nil {
			return nil, fmt.Errorf("creating distortion process: %w", err)
		}
		if err := VerifySignature(distortion, scalarSpec); err != nil {
			return nil, fmt.Errorf("distortion process: %w", err)
		}
	}

	return &discretizationProcess{
		spec:        spec,
		encodedSpec: encodedSpec,
		stepSize:    f.StepSize,
		inner:       inner,
		distortion:  distortion,
	}, nil
}

// discretizationState is the server state threaded across rounds:
// the fixed step size plus the inner process's own state. The step
// size never changes from one state to its successor.
type discretizationState struct {
	stepSize float64
	inner    State
}

type discretizationProcess struct {
	spec        tensor.Spec
	encodedSpec tensor.Spec
	stepSize    float64
	inner       Process
	distortion  Process
}

func (p *discretizationProcess) ValueSpec() tensor.Spec { return p.spec }

// EncodedSpec is the Int32-typed spec of the values handed to the
// inner process.
func (p *discretizationProcess) EncodedSpec() tensor.Spec { return p.encodedSpec }

func (p *discretizationProcess) Initialize(ctx context.Context) (State, error) {
	innerState, err := p.inner.Initialize(ctx)
	if err != nil {
		return nil, err
	}
	return discretizationState{stepSize: p.stepSize, inner: innerState}, nil
}

func (p *discretizationProcess) Next(ctx context.Context, state State, values []tensor.Value) (*Output, error) {
	st, ok := state.(discretizationState)
	if !ok {
		return nil, ErrForeignState
	}
	if err := checkRound(p.spec, values); err != nil {
		return nil, err
	}

	// Contributor-side encoding is stateless across contributors and
	// runs in parallel; every goroutine draws from its own rounding
	// source inside Encode.
	encoded := make([]tensor.Value, len(values))
	var g errgroup.Group
	for i, v := range values {
		g.Go(func() error {
			e, err := quantize.Encode(v, st.stepSize)
			if err != nil {
				return fmt.Errorf("encoding contributor %d: %w", i, err)
			}
			encoded[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	innerOut, err := p.inner.Next(ctx, st.inner, encoded)
	if err != nil {
		return nil, err
	}

	result, err := quantize.Decode(innerOut.Result, st.stepSize, p.spec)
	if err != nil {
		return nil, fmt.Errorf("decoding inner result: %w", err)
	}

	measurements := Measurements{MeasurementQuantized: innerOut.Result}
	if p.distortion != nil {
		scalars := make([]tensor.Value, len(values))
		for i := range values {
			roundTripped, err := quantize.Decode(encoded[i], st.stepSize, p.spec)
			if err != nil {
				return nil, fmt.Errorf("round-tripping contributor %d: %w", i, err)
			}
			d, err := quantize.Distortion(values[i], roundTripped)
			if err != nil {
				return nil, fmt.Errorf("measuring distortion of contributor %d: %w", i, err)
			}
			scalars[i] = tensor.Scalar(tensor.Float32, quantize.CastFloat(d, tensor.Float32))
		}
		// The distortion process carries no cross-round state; each
		// round aggregates from a fresh initialization.
		distState, err := p.distortion.Initialize(ctx)
		if err != nil {
			return nil, err
		}
		distOut, err := p.distortion.Next(ctx, distState, scalars)
		if err != nil {
			return nil, err
		}
		measurements[MeasurementDistortion] = distOut.Result
	}

	return &Output{
		State:        discretizationState{stepSize: st.stepSize, inner: innerOut.State},
		Result:       result,
		Measurements: measurements,
	}, nil
}
