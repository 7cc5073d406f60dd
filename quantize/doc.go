// Package quantize converts structured floating-point values into
// bounded-width integer encodings and back.
//
// Encoding divides every element by a positive step size and applies
// stochastic rounding: the scaled value rounds to one of its two
// adjacent integers with probability proportional to the fractional
// distance, so the expected encoding equals the scaled input exactly.
// Decoding multiplies by the step size and restores the original
// element kind. The absolute round-trip error of any single element is
// at most one step size, with probability one.
//
// Every encode invocation draws its randomness from a fresh Source so
// that repeated encodings of the same value, and encodings performed
// concurrently for different contributors, are decorrelated.
package quantize
