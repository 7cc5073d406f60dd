package tensor

import "fmt"

// DType identifies the element kind of a tensor leaf.
type DType int

const (
	Invalid DType = iota
	Float16
	Float32
	Float64
	Int32
	Int64
	Bool
	String
)

var dtypeNames = map[DType]string{
	Float16: "float16",
	Float32: "float32",
	Float64: "float64",
	Int32:   "int32",
	Int64:   "int64",
	Bool:    "bool",
	String:  "string",
}

func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dtype(%d)", int(d))
}

// IsFloat reports whether d is one of the floating-point element kinds
// accepted by the quantization pipeline.
func (d DType) IsFloat() bool {
	switch d {
	case Float16, Float32, Float64:
		return true
	}
	return false
}

// ParseDType converts a wire-format dtype name back to a DType.
func ParseDType(s string) (DType, error) {
	for d, name := range dtypeNames {
		if name == s {
			return d, nil
		}
	}
	return Invalid, fmt.Errorf("unknown dtype %q", s)
}

// Shape is the fixed dimension list of a tensor leaf. A nil Shape is a
// scalar; a zero dimension is legal and yields an empty tensor.
type Shape []int

// NumElements returns the total element count, zero if any dimension
// is zero.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Equal reports whether two shapes have identical dimensions. A nil
// shape equals only another rank-zero shape.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	return fmt.Sprintf("%v", []int(s))
}

// Validate rejects negative dimensions.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("shape %v: dimension %d is negative", s, i)
		}
	}
	return nil
}
