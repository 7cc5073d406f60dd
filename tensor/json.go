package tensor

import (
	"encoding/json"
	"fmt"
)

// Wire format: tensor leaves carry a dtype tag, a shape and flat
// element data; composites carry an ordered field list. A node is a
// leaf exactly when it has a "dtype" key.

type specEnvelope struct {
	DType  string              `json:"dtype,omitempty"`
	Shape  []int               `json:"shape,omitempty"`
	Fields []specFieldEnvelope `json:"fields,omitempty"`
	leaf   bool
}

type specFieldEnvelope struct {
	Name string          `json:"name,omitempty"`
	Spec json.RawMessage `json:"spec"`
}

// MarshalSpec encodes a Spec into its JSON wire format.
func MarshalSpec(s Spec) ([]byte, error) {
	switch spec := s.(type) {
	case TensorSpec:
		return json.Marshal(specEnvelope{DType: spec.DType.String(), Shape: spec.Shape})
	case StructSpec:
		fields := make([]specFieldEnvelope, len(spec.Fields))
		for i, f := range spec.Fields {
			raw, err := MarshalSpec(f.Spec)
			if err != nil {
				return nil, err
			}
			fields[i] = specFieldEnvelope{Name: f.Name, Spec: raw}
		}
		return json.Marshal(specEnvelope{Fields: fields})
	default:
		return nil, fmt.Errorf("cannot marshal spec %T", s)
	}
}

// UnmarshalSpec decodes the JSON wire format back into a Spec.
func UnmarshalSpec(data []byte) (Spec, error) {
	var env specEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding spec: %w", err)
	}
	if env.DType != "" {
		dtype, err := ParseDType(env.DType)
		if err != nil {
			return nil, err
		}
		return TensorSpec{DType: dtype, Shape: env.Shape}, nil
	}
	fields := make([]Field, len(env.Fields))
	for i, f := range env.Fields {
		sub, err := UnmarshalSpec(f.Spec)
		if err != nil {
			return nil, err
		}
		fields[i] = Field{Name: f.Name, Spec: sub}
	}
	return StructSpec{Fields: fields}, nil
}

type valueEnvelope struct {
	DType  string               `json:"dtype,omitempty"`
	Shape  []int                `json:"shape,omitempty"`
	Floats []float64            `json:"data,omitempty"`
	Ints   []int32              `json:"int_data,omitempty"`
	Fields []valueFieldEnvelope `json:"fields,omitempty"`
}

type valueFieldEnvelope struct {
	Name  string          `json:"name,omitempty"`
	Value json.RawMessage `json:"value"`
}

// MarshalValue encodes a Value into its JSON wire format.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Tensor:
		env := valueEnvelope{DType: val.DType.String(), Shape: val.Shape}
		if val.DType == Int32 {
			env.Ints = val.Ints
		} else {
			env.Floats = val.Floats
		}
		return json.Marshal(env)
	case Struct:
		fields := make([]valueFieldEnvelope, len(val.Fields))
		for i, f := range val.Fields {
			raw, err := MarshalValue(f.Value)
			if err != nil {
				return nil, err
			}
			fields[i] = valueFieldEnvelope{Name: f.Name, Value: raw}
		}
		return json.Marshal(valueEnvelope{Fields: fields})
	default:
		return nil, fmt.Errorf("cannot marshal value %T", v)
	}
}

// UnmarshalValue decodes the JSON wire format back into a Value.
func UnmarshalValue(data []byte) (Value, error) {
	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	if env.DType != "" {
		dtype, err := ParseDType(env.DType)
		if err != nil {
			return nil, err
		}
		t := Tensor{DType: dtype, Shape: env.Shape}
		if dtype == Int32 {
			t.Ints = env.Ints
			if t.Ints == nil {
				t.Ints = []int32{}
			}
		} else {
			t.Floats = env.Floats
			if t.Floats == nil {
				t.Floats = []float64{}
			}
		}
		// An omitted data key is only legal for zero-size shapes.
		if err := t.validate(""); err != nil {
			return nil, err
		}
		return t, nil
	}
	fields := make([]ValueField, len(env.Fields))
	for i, f := range env.Fields {
		sub, err := UnmarshalValue(f.Value)
		if err != nil {
			return nil, err
		}
		fields[i] = ValueField{Name: f.Name, Value: sub}
	}
	return Struct{Fields: fields}, nil
}
