// Package aggregator implements the stateful aggregation processes of
// QuantAgg.
//
// All aggregation follows one two-phase contract: Initialize produces
// a fresh opaque server state, and Next consumes one round of
// contributor values together with the previous state, returning the
// successor state, the combined result and a set of measurements. The
// caller threads the state linearly from round to round; processes
// are pure with respect to it and never retain it internally.
//
// The core process is the stochastic discretization aggregator. It
// quantizes every contributor's floating-point value into a 32-bit
// integer encoding, delegates summation of the encodings to an
// injected inner process, reconstructs the floating-point sum from the
// inner result, and reports the quantization distortion through a
// second injected process. Plain summation and unweighted averaging
// processes are provided as the default collaborators.
package aggregator
