package quantize

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashbots/quantagg/tensor"
)

func TestEncodedSpec(t *testing.T) {
	spec := tensor.StructSpec{Fields: []tensor.Field{
		{Name: "a", Spec: tensor.TensorSpec{DType: tensor.Float16, Shape: tensor.Shape{2}}},
		{Name: "b", Spec: tensor.TensorSpec{DType: tensor.Float64, Shape: tensor.Shape{3, 3}}},
	}}
	want := tensor.StructSpec{Fields: []tensor.Field{
		{Name: "a", Spec: tensor.TensorSpec{DType: tensor.Int32, Shape: tensor.Shape{2}}},
		{Name: "b", Spec: tensor.TensorSpec{DType: tensor.Int32, Shape: tensor.Shape{3, 3}}},
	}}
	require.True(t, EncodedSpec(spec).Equal(want))
}

func TestEncodeRejectsNonFloatLeaf(t *testing.T) {
	_, err := Encode(tensor.ScalarInt(1), 0.5)
	require.Error(t, err)
	var typeErr *tensor.TypeError
	require.ErrorAs(t, err, &typeErr)
}

func TestEncodeRejectsBadStepSize(t *testing.T) {
	_, err := Encode(tensor.Scalar(tensor.Float32, 1), 0)
	require.Error(t, err)
	_, err = Encode(tensor.Scalar(tensor.Float32, 1), -0.1)
	require.Error(t, err)
}

func TestRoundTripErrorBound(t *testing.T) {
	steps := []float64{math.Pow(2, -10), 0.1, 1, 32}
	shapes := []tensor.Shape{{10}, {10, 10}, {10, 5, 2}}
	rng := rand.New(rand.NewPCG(1, 2))

	for _, step := range steps {
		for _, shape := range shapes {
			data := make([]float64, shape.NumElements())
			for i := range data {
				data[i] = rng.Float64()*20 - 10
			}
			v := tensor.NewTensor(tensor.Float64, shape, data)

			encoded, err := Encode(v, step)
			require.NoError(t, err)
			decoded, err := Decode(encoded, step, tensor.SpecOf(v))
			require.NoError(t, err)

			out := decoded.(tensor.Tensor)
			require.True(t, out.Shape.Equal(shape))
			for i := range data {
				require.LessOrEqual(t, math.Abs(out.Floats[i]-data[i]), step,
					"element %d: %v -> %v with step %v", i, data[i], out.Floats[i], step)
			}
		}
	}
}

func TestScalingIdentity(t *testing.T) {
	// Integral inputs scaled by an exact power-of-two step leave no
	// rounding ambiguity: encode must equal round(x/step) and the
	// round trip must be exact.
	steps := []float64{1, 0.5, 0.25, math.Pow(2, -5)}
	rng := rand.New(rand.NewPCG(3, 4))

	for _, step := range steps {
		data := make([]float64, 100)
		for i := range data {
			data[i] = float64(rng.IntN(200) - 100)
		}
		v := tensor.NewTensor(tensor.Float32, tensor.Shape{100}, data)

		encoded, err := Encode(v, step)
		require.NoError(t, err)
		enc := encoded.(tensor.Tensor)
		require.Equal(t, tensor.Int32, enc.DType)
		for i := range data {
			require.Equal(t, int32(math.Round(data[i]/step)), enc.Ints[i])
		}

		decoded, err := Decode(encoded, step, tensor.SpecOf(v))
		require.NoError(t, err)
		require.Equal(t, data, decoded.(tensor.Tensor).Floats)
	}
}

func TestEncodeDecorrelatedAcrossCalls(t *testing.T) {
	data := make([]float64, 1000)
	rng := rand.New(rand.NewPCG(5, 6))
	for i := range data {
		data[i] = rng.Float64()*10 - 5
	}
	v := tensor.NewTensor(tensor.Float32, tensor.Shape{1000}, data)

	first, err := Encode(v, 0.4)
	require.NoError(t, err)
	second, err := Encode(v, 0.4)
	require.NoError(t, err)

	require.NotEqual(t, first.(tensor.Tensor).Ints, second.(tensor.Tensor).Ints)
}

func TestDecodeRestoresDType(t *testing.T) {
	for _, dtype := range []tensor.DType{tensor.Float16, tensor.Float32, tensor.Float64} {
		t.Run(dtype.String(), func(t *testing.T) {
			data := []float64{0, 1, 2, 3, 4, 5, 6, 7}
			v := tensor.NewTensor(dtype, tensor.Shape{8}, data)

			encoded, err := Encode(v, 1)
			require.NoError(t, err)
			require.Equal(t, tensor.Int32, encoded.(tensor.Tensor).DType)

			decoded, err := Decode(encoded, 1, tensor.SpecOf(v))
			require.NoError(t, err)
			out := decoded.(tensor.Tensor)
			require.Equal(t, dtype, out.DType)
			require.Equal(t, data, out.Floats)
		})
	}
}

func TestCodecPreservesNestingAndZeroSize(t *testing.T) {
	v := tensor.Struct{Fields: []tensor.ValueField{
		{Name: "empty", Value: tensor.NewTensor(tensor.Float32, tensor.Shape{0}, []float64{})},
		{Name: "pair", Value: tensor.NewTensor(tensor.Float32, tensor.Shape{2}, []float64{1, 2})},
	}}
	spec := tensor.SpecOf(v)

	encoded, err := Encode(v, 0.125)
	require.NoError(t, err)
	require.True(t, tensor.SpecOf(encoded).Equal(EncodedSpec(spec)))

	decoded, err := Decode(encoded, 0.125, spec)
	require.NoError(t, err)
	require.True(t, tensor.SpecOf(decoded).Equal(spec))

	fields := decoded.(tensor.Struct).Fields
	require.Empty(t, fields[0].Value.(tensor.Tensor).Floats)
	require.Equal(t, []float64{1, 2}, fields[1].Value.(tensor.Tensor).Floats)
}

func TestEncodeSaturates(t *testing.T) {
	cases := []struct {
		name string
		v    float64
		step float64
		want int32
	}{
		{"huge positive", 1e30, 0.125, math.MaxInt32},
		{"huge negative", -1e30, 0.125, math.MinInt32},
		{"past int32 positive", 3e9, 1, math.MaxInt32},
		{"past int32 negative", -3e9, 1, math.MinInt32},
		{"tiny step", 1.0, 1e-12, math.MaxInt32},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded, err := Encode(tensor.Scalar(tensor.Float64, tc.v), tc.step)
			require.NoError(t, err)
			require.Equal(t, tc.want, encoded.(tensor.Tensor).Ints[0])
		})
	}
}

func TestEncodeIsUnbiased(t *testing.T) {
	const trials = 20000
	const v = 0.3
	const step = 0.125

	var sum float64
	for trial := 0; trial < trials; trial++ {
		encoded, err := Encode(tensor.Scalar(tensor.Float64, v), step)
		require.NoError(t, err)
		sum += float64(encoded.(tensor.Tensor).Ints[0]) * step
	}
	require.InDelta(t, v, sum/trials, 0.005)
}
