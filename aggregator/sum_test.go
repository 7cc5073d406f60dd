package aggregator

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashbots/quantagg/tensor"
)

func TestSumProcess(t *testing.T) {
	ctx := context.Background()
	spec := tensor.TensorSpec{DType: tensor.Int32, Shape: tensor.Shape{3}}
	p, err := SumFactory{}.Create(spec)
	require.NoError(t, err)
	require.True(t, p.ValueSpec().Equal(spec))

	state, err := p.Initialize(ctx)
	require.NoError(t, err)

	out, err := p.Next(ctx, state, []tensor.Value{
		tensor.NewIntTensor(tensor.Shape{3}, []int32{1, 2, 3}),
		tensor.NewIntTensor(tensor.Shape{3}, []int32{10, 20, 30}),
		tensor.NewIntTensor(tensor.Shape{3}, []int32{-1, -2, -3}),
	})
	require.NoError(t, err)
	require.Equal(t, []int32{10, 20, 30}, out.Result.(tensor.Tensor).Ints)
	require.Equal(t, out.Result, out.Measurements[MeasurementSum])
}

func TestSumInt32WrapsOnOverflow(t *testing.T) {
	ctx := context.Background()
	spec := tensor.TensorSpec{DType: tensor.Int32}
	p, err := SumFactory{}.Create(spec)
	require.NoError(t, err)
	state, err := p.Initialize(ctx)
	require.NoError(t, err)

	// Fixed-width addition: the total is reduced modulo 2^32, it does
	// not saturate.
	out, err := p.Next(ctx, state, []tensor.Value{
		tensor.ScalarInt(math.MaxInt32),
		tensor.ScalarInt(math.MaxInt32),
	})
	require.NoError(t, err)
	require.Equal(t, []int32{-2}, out.Result.(tensor.Tensor).Ints)
}

func TestSumSingleContributorDoesNotAlias(t *testing.T) {
	ctx := context.Background()
	spec := tensor.TensorSpec{DType: tensor.Int32, Shape: tensor.Shape{2}}
	p, err := SumFactory{}.Create(spec)
	require.NoError(t, err)
	state, err := p.Initialize(ctx)
	require.NoError(t, err)

	input := tensor.NewIntTensor(tensor.Shape{2}, []int32{5, 6})
	out, err := p.Next(ctx, state, []tensor.Value{input})
	require.NoError(t, err)

	input.Ints[0] = 99
	require.Equal(t, []int32{5, 6}, out.Result.(tensor.Tensor).Ints)
}

func TestSumRejectsForeignState(t *testing.T) {
	ctx := context.Background()
	p, err := SumFactory{}.Create(tensor.TensorSpec{DType: tensor.Int32})
	require.NoError(t, err)

	_, err = p.Next(ctx, "not a sum state", []tensor.Value{tensor.ScalarInt(1)})
	require.ErrorIs(t, err, ErrForeignState)
}

func TestSumRejectsEmptyRound(t *testing.T) {
	ctx := context.Background()
	p, err := SumFactory{}.Create(tensor.TensorSpec{DType: tensor.Int32})
	require.NoError(t, err)
	state, err := p.Initialize(ctx)
	require.NoError(t, err)

	_, err = p.Next(ctx, state, nil)
	require.ErrorIs(t, err, ErrNoValues)
}

func TestSumRejectsNonConformingValue(t *testing.T) {
	ctx := context.Background()
	p, err := SumFactory{}.Create(tensor.TensorSpec{DType: tensor.Int32, Shape: tensor.Shape{2}})
	require.NoError(t, err)
	state, err := p.Initialize(ctx)
	require.NoError(t, err)

	_, err = p.Next(ctx, state, []tensor.Value{
		tensor.NewIntTensor(tensor.Shape{2}, []int32{1, 2}),
		tensor.NewIntTensor(tensor.Shape{3}, []int32{1, 2, 3}),
	})
	require.Error(t, err)
}

func TestVerifySignature(t *testing.T) {
	spec := tensor.TensorSpec{DType: tensor.Int32, Shape: tensor.Shape{2}}
	p, err := SumFactory{}.Create(spec)
	require.NoError(t, err)

	require.NoError(t, VerifySignature(p, spec))
	require.Error(t, VerifySignature(p, tensor.TensorSpec{DType: tensor.Int32, Shape: tensor.Shape{3}}))
}
