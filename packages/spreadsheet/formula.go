package spreadsheet

import (
	"iter"
	"strconv"
	"strings"
)

// FormulaKind tags the variant held by a Formula
type FormulaKind uint8

const (
	FormulaConstant  FormulaKind = iota // a literal value
	FormulaReference                    // a copy of another cell
	FormulaOperation                    // an operator applied to operands
)

// OperandKind tags the variant held by an Operand
type OperandKind uint8

const (
	OperandConstant OperandKind = iota
	OperandCell
	OperandRange
)

// Operand is one input of an operation: a constant, a single cell, or a
// range of cells (aggregate operators only)
type Operand struct {
	Kind  OperandKind
	Value int64        // OperandConstant
	Cell  Address      // OperandCell
	Range RangeAddress // OperandRange
}

// ConstArg builds a constant operand
func ConstArg(value int64) Operand {
	return Operand{Kind: OperandConstant, Value: value}
}

// CellArg builds a single-cell operand
func CellArg(addr Address) Operand {
	return Operand{Kind: OperandCell, Cell: addr}
}

// RangeArg builds a range operand
func RangeArg(r RangeAddress) Operand {
	return Operand{Kind: OperandRange, Range: r}
}

// References returns every address the operand reads, ranges expanded
func (o Operand) References() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		switch o.Kind {
		case OperandCell:
			yield(o.Cell)
		case OperandRange:
			for addr := range o.Range.Cells() {
				if !yield(addr) {
					return
				}
			}
		}
	}
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandCell:
		return FormatAddress(o.Cell)
	case OperandRange:
		return o.Range.String()
	default:
		return strconv.FormatInt(o.Value, 10)
	}
}

// Formula is the computation held by a cell. it is a closed variant: Kind
// decides which of the remaining fields are meaningful.
type Formula struct {
	Kind     FormulaKind
	Value    int64     // FormulaConstant
	Ref      Address   // FormulaReference
	Op       OpID      // FormulaOperation
	Operands []Operand // FormulaOperation, 1-2 items
}

// Const builds a constant formula. editing a cell to a constant stores a
// literal.
func Const(value int64) Formula {
	return Formula{Kind: FormulaConstant, Value: value}
}

// Ref builds a formula that copies another cell
func Ref(addr Address) Formula {
	return Formula{Kind: FormulaReference, Ref: addr}
}

// Op builds an operation formula
func Op(op OpID, operands ...Operand) Formula {
	return Formula{Kind: FormulaOperation, Op: op, Operands: operands}
}

// References returns every address the formula reads, ranges expanded. the
// same address can be yielded more than once.
func (f Formula) References() iter.Seq[Address] {
	return func(yield func(Address) bool) {
		switch f.Kind {
		case FormulaReference:
			yield(f.Ref)
		case FormulaOperation:
			for _, operand := range f.Operands {
				for addr := range operand.References() {
					if !yield(addr) {
						return
					}
				}
			}
		}
	}
}

// clone deep-copies the formula so the store never aliases caller memory
func (f Formula) clone() *Formula {
	c := f
	if f.Operands != nil {
		c.Operands = append([]Operand(nil), f.Operands...)
	}
	return &c
}

func (f Formula) String() string {
	switch f.Kind {
	case FormulaReference:
		return FormatAddress(f.Ref)
	case FormulaOperation:
		args := make([]string, len(f.Operands))
		for i, operand := range f.Operands {
			args[i] = operand.String()
		}
		return f.Op.String() + "(" + strings.Join(args, ", ") + ")"
	default:
		return strconv.FormatInt(f.Value, 10)
	}
}
