package spreadsheet

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltInFunctions(t *testing.T) {
	bf := NewDefaultBuiltInFunctions(&recordingSleeper{})

	cases := []struct {
		name     string
		op       OpID
		args     []int64
		expected int64
		code     ErrorCode
	}{
		{"Add", OpAdd, []int64{2, 3}, 5, ErrorCodeNone},
		{"AddOverflow", OpAdd, []int64{math.MaxInt64, 1}, 0, ErrorCodeNum},
		{"AddUnderflow", OpAdd, []int64{math.MinInt64, -1}, 0, ErrorCodeNum},
		{"Sub", OpSub, []int64{2, 5}, -3, ErrorCodeNone},
		{"SubOverflow", OpSub, []int64{math.MinInt64, 1}, 0, ErrorCodeNum},
		{"Mul", OpMul, []int64{-4, 6}, -24, ErrorCodeNone},
		{"MulByZero", OpMul, []int64{0, math.MinInt64}, 0, ErrorCodeNone},
		{"MulOverflow", OpMul, []int64{math.MaxInt64 / 2, 3}, 0, ErrorCodeNum},
		{"MulMinByMinusOne", OpMul, []int64{math.MinInt64, -1}, 0, ErrorCodeNum},
		{"DivTruncates", OpDiv, []int64{7, 2}, 3, ErrorCodeNone},
		{"DivTruncatesTowardZero", OpDiv, []int64{-7, 2}, -3, ErrorCodeNone},
		{"DivByZero", OpDiv, []int64{1, 0}, 0, ErrorCodeDiv0},
		{"DivOverflow", OpDiv, []int64{math.MinInt64, -1}, 0, ErrorCodeNum},
		{"Sum", OpSum, []int64{1, 2, 3, 4}, 10, ErrorCodeNone},
		{"SumOverflow", OpSum, []int64{math.MaxInt64, 1}, 0, ErrorCodeNum},
		{"AvgTruncates", OpAvg, []int64{1, 2}, 1, ErrorCodeNone},
		{"AvgNegative", OpAvg, []int64{-1, -2}, -1, ErrorCodeNone},
		{"Min", OpMin, []int64{3, -1, 2}, -1, ErrorCodeNone},
		{"Max", OpMax, []int64{3, -1, 2}, 3, ErrorCodeNone},
		{"StdevSingle", OpStdev, []int64{5}, 0, ErrorCodeNone},
		{"StdevPopulation", OpStdev, []int64{2, 4, 4, 4, 5, 5, 7, 9}, 2, ErrorCodeNone},
		{"StdevRounds", OpStdev, []int64{1, 2, 3, 4}, 1, ErrorCodeNone},
		{"StdevRoundsUp", OpStdev, []int64{0, 3}, 2, ErrorCodeNone},
		{"Sleep", OpSleep, []int64{0}, 0, ErrorCodeNone},
		{"SleepNegative", OpSleep, []int64{-3}, -3, ErrorCodeNone},
		{"SleepLongest", OpSleep, []int64{maxSleepSeconds}, maxSleepSeconds, ErrorCodeNone},
		{"SleepOverflow", OpSleep, []int64{10_000_000_000}, 0, ErrorCodeNum},
		{"WrongArity", OpAdd, []int64{1}, 0, ErrorCodeValue},
		{"UnknownOperator", OpID(99), []int64{1}, 0, ErrorCodeValue},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			value, code := bf.Call(c.op, c.args)
			assert.Equal(t, c.code, code)
			assert.Equal(t, c.expected, value)
		})
	}
}

func TestOperatorLookup(t *testing.T) {
	bf := NewDefaultBuiltInFunctions(nil)

	op, ok := bf.Lookup("stdev")
	assert.True(t, ok)
	assert.Equal(t, OpStdev, op)

	_, ok = bf.Lookup("CONCAT")
	assert.False(t, ok)

	spec, ok := bf.Spec(OpSum)
	assert.True(t, ok)
	assert.Equal(t, ShapeRange, spec.Shape)
	assert.Equal(t, 1, spec.Arity)

	assert.Equal(t, "DIV", OpDiv.String())
	assert.Equal(t, "OP77", OpID(77).String())
	assert.Equal(t, "#DIV/0!", ErrorCodeDiv0.String())
}

func TestSleepOverflowNeverReachesSleeper(t *testing.T) {
	sleeper := &recordingSleeper{}
	bf := NewDefaultBuiltInFunctions(sleeper)

	_, code := bf.SLEEP([]int64{math.MaxInt64})
	assert.Equal(t, ErrorCodeNum, code)
	assert.Empty(t, sleeper.slept)

	_, code = bf.SLEEP([]int64{maxSleepSeconds})
	assert.Equal(t, ErrorCodeNone, code)
	assert.Equal(t, []time.Duration{time.Duration(maxSleepSeconds) * time.Second}, sleeper.slept)
	assert.Positive(t, sleeper.slept[0])
}

func TestRegisterOperator(t *testing.T) {
	identity := func(args []int64) (int64, ErrorCode) { return args[0], ErrorCodeNone }

	t.Run("RejectsArityOutsideOneToTwo", func(t *testing.T) {
		bf := NewDefaultBuiltInFunctions(nil)
		for _, arity := range []int{0, 3, -1} {
			err := bf.Register(OpID(100), OperatorSpec{Name: "WIDE", Arity: arity, Eval: identity})
			var appErr *AppError
			require.ErrorAs(t, err, &appErr, "arity %d", arity)
			assert.Equal(t, InvalidArgument, appErr.Code)
		}
		_, ok := bf.Lookup("WIDE")
		assert.False(t, ok)
	})

	t.Run("RejectsMissingNameOrEval", func(t *testing.T) {
		bf := NewDefaultBuiltInFunctions(nil)
		assert.Error(t, bf.Register(OpID(100), OperatorSpec{Arity: 1, Eval: identity}))
		assert.Error(t, bf.Register(OpID(100), OperatorSpec{Name: "NOEVAL", Arity: 1}))
	})

	t.Run("RejectsDuplicateNameIgnoringCase", func(t *testing.T) {
		bf := NewDefaultBuiltInFunctions(nil)
		err := bf.Register(OpID(150), OperatorSpec{Name: "add", Arity: 2, Eval: bf.ADD})
		var appErr *AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, InvalidArgument, appErr.Code)

		op, ok := bf.Lookup("ADD")
		assert.True(t, ok)
		assert.Equal(t, OpAdd, op)
		_, ok = bf.Spec(OpID(150))
		assert.False(t, ok)
	})

	t.Run("ReplacingFreesOldName", func(t *testing.T) {
		bf := NewDefaultBuiltInFunctions(nil)
		require.NoError(t, bf.Register(OpAdd, OperatorSpec{Name: "PLUS", Arity: 2, Eval: bf.ADD}))

		_, ok := bf.Lookup("add")
		assert.False(t, ok)
		op, ok := bf.Lookup("plus")
		assert.True(t, ok)
		assert.Equal(t, OpAdd, op)

		require.NoError(t, bf.Register(OpID(150), OperatorSpec{Name: "ADD", Arity: 2, Eval: bf.ADD}))
		op, _ = bf.Lookup("ADD")
		assert.Equal(t, OpID(150), op)
	})

	t.Run("LookupIsStableAcrossGrids", func(t *testing.T) {
		for i := 0; i < 50; i++ {
			_, err := CreateGrid(2, 2, WithOperator(OpID(150), OperatorSpec{Name: "Add", Arity: 2, Eval: identity}))
			require.Error(t, err)

			s, err := CreateGrid(2, 2)
			require.NoError(t, err)
			op, ok := s.LookupOperator("add")
			require.True(t, ok)
			require.Equal(t, OpAdd, op)
		}
	})
}
