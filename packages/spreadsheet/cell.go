package spreadsheet

// ErrorCode records why a cell is in error, following Excel conventions. the
// contractual flag is Cell.IsError; the code is diagnostic.
type ErrorCode uint8

const (
	ErrorCodeNone  ErrorCode = 0
	ErrorCodeDiv0  ErrorCode = 2 // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3 // #VALUE! - wrong number or kind of operands
	ErrorCodeRef   ErrorCode = 4 // #REF! - invalid cell reference
	ErrorCodeNum   ErrorCode = 6 // #NUM! - number too large or small to be represented
)

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNone:  "",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeNum:   "#NUM!",
}

func (c ErrorCode) String() string {
	return ErrorMapper[c]
}

// Address identifies a cell by zero-based row and column. addresses are the
// only identity a cell has; cells are never relocated.
type Address struct {
	Row    int
	Column int
}

func (a Address) String() string {
	return FormatAddress(a)
}

// Cell is a single record of the cell store
type Cell struct {
	Value     int64     // last successfully computed value, or the literal
	Formula   *Formula  // nil for literal cells
	IsError   bool      // sticky until the cell re-evaluates cleanly
	ErrorCode ErrorCode // reason for IsError, ErrorCodeNone otherwise
}

// IsLiteral reports whether the cell holds a plain value
func (c Cell) IsLiteral() bool {
	return c.Formula == nil
}

func (c Cell) isZero() bool {
	return c.Value == 0 && c.Formula == nil && !c.IsError
}

// Status is the outcome of an edit. the numeric values are stable: the driver
// layer shows them to the user.
type Status uint8

const (
	// StatusNone is the neutral state: no edit since the status was last reset
	StatusNone Status = 0

	// StatusInvalidInput means an address, range, or operand count was
	// rejected before any mutation
	StatusInvalidInput Status = 1

	// StatusOK means the edit committed and every dependent was recomputed
	StatusOK Status = 2

	// StatusCyclicDependency means the edit would have closed a cycle and was
	// rejected before any mutation
	StatusCyclicDependency Status = 3
)

var statusText = map[Status]string{
	StatusNone:             "ok",
	StatusInvalidInput:     "Invalid Input",
	StatusOK:               "ok",
	StatusCyclicDependency: "cyclic dependence",
}

func (s Status) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return "unknown status"
}

// Committed reports whether the edit was applied
func (s Status) Committed() bool {
	return s == StatusOK
}
