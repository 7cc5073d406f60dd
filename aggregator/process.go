package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/flashbots/quantagg/tensor"
)

// State is the opaque server-side state of a Process. Each process
// defines its own concrete state type; handing a process a state it
// did not produce fails with ErrForeignState. States are values: the
// caller passes the previous state into Next and replaces it with the
// state Next returns, never sharing one state between overlapping
// calls.
type State any

// ErrForeignState is returned by Next when the supplied state was not
// produced by this process (or by an equivalent Initialize call).
var ErrForeignState = errors.New("state does not belong to this process")

// ErrNoValues is returned by Next when a round carries no contributor
// values.
var ErrNoValues = errors.New("round has no contributor values")

// Measurements carries the named diagnostic outputs of one round.
type Measurements map[string]tensor.Value

// Output is the full result of one Next call.
type Output struct {
	// State is the successor server state; the caller must use it for
	// the following round.
	State State

	// Result is the combined value across all contributors.
	Result tensor.Value

	// Measurements holds round diagnostics keyed by measurement name.
	Measurements Measurements
}

// Process is the generic stateful aggregation contract. Initialize
// may be called more than once; every call yields an independent
// fresh state. Next must be driven with linearly threaded states: at
// most one in-flight round per logical state.
type Process interface {
	// Initialize returns a fresh server state. It involves no
	// contributor data and no randomness.
	Initialize(ctx context.Context) (State, error)

	// Next combines one round of contributor values with the previous
	// state. Failures of delegated collaborators propagate unwrapped.
	Next(ctx context.Context, state State, values []tensor.Value) (*Output, error)

	// ValueSpec is the spec of the contributor values this process was
	// constructed over.
	ValueSpec() tensor.Spec
}

// Factory constructs a Process bound to a concrete value spec.
// Factories perform all type validation; a returned Process never
// re-checks its spec per round beyond conformance of the submitted
// values.
type Factory interface {
	Create(spec tensor.Spec) (Process, error)
}

// VerifySignature checks, once at composition time, that a constructed
// process is bound to the expected value spec. Composite aggregators
// call this on every collaborator they instantiate so that signature
// mismatches surface at construction rather than mid-round.
func VerifySignature(p Process, want tensor.Spec) error {
	got := p.ValueSpec()
	if got == nil || !got.Equal(want) {
		return fmt.Errorf("process bound to spec %v, want %v", got, want)
	}
	return nil
}

// checkRound validates the shared preconditions of a Next call.
func checkRound(spec tensor.Spec, values []tensor.Value) error {
	if len(values) == 0 {
		return ErrNoValues
	}
	for i, v := range values {
		if err := tensor.Check(spec, v); err != nil {
			return fmt.Errorf("contributor %d: %w", i, err)
		}
	}
	return nil
}
