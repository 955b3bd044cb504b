package spreadsheet

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// OpID identifies an operator in the catalog
type OpID uint8

const (
	OpAdd OpID = iota + 1
	OpSub
	OpMul
	OpDiv
	OpSum
	OpAvg
	OpMin
	OpMax
	OpStdev
	OpSleep
)

var opNames = map[OpID]string{
	OpAdd:   "ADD",
	OpSub:   "SUB",
	OpMul:   "MUL",
	OpDiv:   "DIV",
	OpSum:   "SUM",
	OpAvg:   "AVG",
	OpMin:   "MIN",
	OpMax:   "MAX",
	OpStdev: "STDEV",
	OpSleep: "SLEEP",
}

func (op OpID) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP%d", uint8(op))
}

// OperandShape says what kind of operands an operator accepts
type OperandShape uint8

const (
	// ShapeScalar operands are constants or single cells
	ShapeScalar OperandShape = iota
	// ShapeRange operands are ranges; the operator folds over every member
	ShapeRange
)

// OperatorSpec describes one operator. Eval receives the resolved operand
// values (ranges flattened row by row) and returns the result, or a non-zero
// ErrorCode.
type OperatorSpec struct {
	Name  string
	Arity int
	Shape OperandShape
	Eval  func(args []int64) (int64, ErrorCode)
}

// Sleeper provides the delay behind SLEEP, replaceable for testing
type Sleeper interface {
	Sleep(d time.Duration)
}

// WallSleeper is the default implementation using the real clock
type WallSleeper struct{}

func (WallSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}

// maxOperands is the most operands any operation takes
const maxOperands = 2

// BuiltInFunctions is the operator catalog of one spreadsheet. names are
// unique ignoring case, so a name always resolves to the same operator.
type BuiltInFunctions struct {
	sleeper   Sleeper
	operators map[OpID]OperatorSpec
	names     map[string]OpID // upper-cased name -> operator
}

// NewDefaultBuiltInFunctions creates the catalog with every built-in operator
func NewDefaultBuiltInFunctions(sleeper Sleeper) *BuiltInFunctions {
	if sleeper == nil {
		sleeper = WallSleeper{}
	}
	bf := &BuiltInFunctions{sleeper: sleeper}
	bf.operators = map[OpID]OperatorSpec{
		OpAdd:   {Name: "ADD", Arity: 2, Shape: ShapeScalar, Eval: bf.ADD},
		OpSub:   {Name: "SUB", Arity: 2, Shape: ShapeScalar, Eval: bf.SUB},
		OpMul:   {Name: "MUL", Arity: 2, Shape: ShapeScalar, Eval: bf.MUL},
		OpDiv:   {Name: "DIV", Arity: 2, Shape: ShapeScalar, Eval: bf.DIV},
		OpSum:   {Name: "SUM", Arity: 1, Shape: ShapeRange, Eval: bf.SUM},
		OpAvg:   {Name: "AVG", Arity: 1, Shape: ShapeRange, Eval: bf.AVG},
		OpMin:   {Name: "MIN", Arity: 1, Shape: ShapeRange, Eval: bf.MIN},
		OpMax:   {Name: "MAX", Arity: 1, Shape: ShapeRange, Eval: bf.MAX},
		OpStdev: {Name: "STDEV", Arity: 1, Shape: ShapeRange, Eval: bf.STDEV},
		OpSleep: {Name: "SLEEP", Arity: 1, Shape: ShapeScalar, Eval: bf.SLEEP},
	}
	bf.names = make(map[string]OpID, len(bf.operators))
	for op, spec := range bf.operators {
		bf.names[strings.ToUpper(spec.Name)] = op
	}
	return bf
}

// Register adds or replaces an operator. the spec must take one or two
// operands, have an Eval, and carry a name no other operator uses.
func (bf *BuiltInFunctions) Register(op OpID, spec OperatorSpec) error {
	if spec.Name == "" || spec.Eval == nil {
		return NewApplicationError(InvalidArgument,
			fmt.Sprintf("operator %s: name and Eval are required", op))
	}
	if spec.Arity < 1 || spec.Arity > maxOperands {
		return NewApplicationError(InvalidArgument,
			fmt.Sprintf("operator %s: arity %d outside 1-%d", spec.Name, spec.Arity, maxOperands))
	}
	name := strings.ToUpper(spec.Name)
	if existing, taken := bf.names[name]; taken && existing != op {
		return NewApplicationError(InvalidArgument,
			fmt.Sprintf("operator %s: name already used by %s", spec.Name, existing))
	}

	if previous, replaced := bf.operators[op]; replaced {
		delete(bf.names, strings.ToUpper(previous.Name))
	}
	bf.operators[op] = spec
	bf.names[name] = op
	return nil
}

// Spec returns the operator description
func (bf *BuiltInFunctions) Spec(op OpID) (OperatorSpec, bool) {
	spec, ok := bf.operators[op]
	return spec, ok
}

// Lookup resolves an operator name, case-insensitively
func (bf *BuiltInFunctions) Lookup(name string) (OpID, bool) {
	op, ok := bf.names[strings.ToUpper(name)]
	return op, ok
}

// Call invokes an operator with resolved operand values
func (bf *BuiltInFunctions) Call(op OpID, args []int64) (int64, ErrorCode) {
	spec, ok := bf.operators[op]
	if !ok {
		return 0, ErrorCodeValue
	}
	return spec.Eval(args)
}

func (bf *BuiltInFunctions) ADD(args []int64) (int64, ErrorCode) {
	if len(args) != 2 {
		return 0, ErrorCodeValue
	}
	return addChecked(args[0], args[1])
}

func (bf *BuiltInFunctions) SUB(args []int64) (int64, ErrorCode) {
	if len(args) != 2 {
		return 0, ErrorCodeValue
	}
	a, b := args[0], args[1]
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, ErrorCodeNum
	}
	return a - b, ErrorCodeNone
}

func (bf *BuiltInFunctions) MUL(args []int64) (int64, ErrorCode) {
	if len(args) != 2 {
		return 0, ErrorCodeValue
	}
	a, b := args[0], args[1]
	if a == 0 || b == 0 {
		return 0, ErrorCodeNone
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, ErrorCodeNum
	}
	return r, ErrorCodeNone
}

// DIV truncates toward zero
func (bf *BuiltInFunctions) DIV(args []int64) (int64, ErrorCode) {
	if len(args) != 2 {
		return 0, ErrorCodeValue
	}
	a, b := args[0], args[1]
	if b == 0 {
		return 0, ErrorCodeDiv0
	}
	if a == math.MinInt64 && b == -1 {
		return 0, ErrorCodeNum
	}
	return a / b, ErrorCodeNone
}

func (bf *BuiltInFunctions) SUM(args []int64) (int64, ErrorCode) {
	var total int64
	for _, v := range args {
		var code ErrorCode
		if total, code = addChecked(total, v); code != ErrorCodeNone {
			return 0, code
		}
	}
	return total, ErrorCodeNone
}

// AVG truncates toward zero
func (bf *BuiltInFunctions) AVG(args []int64) (int64, ErrorCode) {
	if len(args) == 0 {
		return 0, ErrorCodeDiv0
	}
	total, code := bf.SUM(args)
	if code != ErrorCodeNone {
		return 0, code
	}
	return total / int64(len(args)), ErrorCodeNone
}

func (bf *BuiltInFunctions) MIN(args []int64) (int64, ErrorCode) {
	if len(args) == 0 {
		return 0, ErrorCodeValue
	}
	result := args[0]
	for _, v := range args[1:] {
		result = min(result, v)
	}
	return result, ErrorCodeNone
}

func (bf *BuiltInFunctions) MAX(args []int64) (int64, ErrorCode) {
	if len(args) == 0 {
		return 0, ErrorCodeValue
	}
	result := args[0]
	for _, v := range args[1:] {
		result = max(result, v)
	}
	return result, ErrorCodeNone
}

// STDEV is the population standard deviation rounded to the nearest integer
func (bf *BuiltInFunctions) STDEV(args []int64) (int64, ErrorCode) {
	if len(args) == 0 {
		return 0, ErrorCodeDiv0
	}
	n := float64(len(args))
	var mean float64
	for _, v := range args {
		mean += float64(v) / n
	}
	var variance float64
	for _, v := range args {
		d := float64(v) - mean
		variance += d * d / n
	}
	result := math.Round(math.Sqrt(variance))
	if result > math.MaxInt64 || math.IsNaN(result) {
		return 0, ErrorCodeNum
	}
	return int64(result), ErrorCodeNone
}

// maxSleepSeconds is the longest sleep a time.Duration can hold
const maxSleepSeconds = math.MaxInt64 / int64(time.Second)

// SLEEP pauses for the operand's value in seconds and evaluates to it.
// negative values do not sleep; values past maxSleepSeconds are #NUM!.
func (bf *BuiltInFunctions) SLEEP(args []int64) (int64, ErrorCode) {
	if len(args) != 1 {
		return 0, ErrorCodeValue
	}
	if args[0] > maxSleepSeconds {
		return 0, ErrorCodeNum
	}
	if seconds := args[0]; seconds > 0 {
		bf.sleeper.Sleep(time.Duration(seconds) * time.Second)
	}
	return args[0], ErrorCodeNone
}

func addChecked(a, b int64) (int64, ErrorCode) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrorCodeNum
	}
	return a + b, ErrorCodeNone
}
