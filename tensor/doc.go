// Package tensor defines the structured value model used throughout
// QuantAgg: dense numeric tensors arranged in arbitrarily nested,
// statically shaped composites.
//
// A Spec describes the shape of a structured value (element kind plus
// fixed dimensions at every leaf); a Value is a concrete structure
// conforming to a Spec. Both are immutable trees. The package also
// provides the generic leaf-mapping utilities the quantization codec
// and the aggregation processes are built on.
//
// Only floating-point leaves participate in quantized aggregation;
// integer, boolean and string element kinds exist so that validation
// can name what it rejects.
package tensor
