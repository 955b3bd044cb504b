package spreadsheet

import (
	"maps"
	"slices"
)

// Storage holds the cell store and the dependency graph derived from it. the
// two are only ever mutated together, by the edit transaction.
type Storage struct {
	worksheet       *Worksheet
	dependencyGraph *DependencyGraph
}

func newStorage(rows, columns int) *Storage {
	return &Storage{
		worksheet:       NewWorksheet(rows, columns),
		dependencyGraph: NewDependencyGraph(),
	}
}

// validFormula checks a formula against the grid and the operator catalog:
// every address in bounds, every range well-formed, and the operand list
// matching the operator's arity and shape. nothing is expanded.
func (st *Storage) validFormula(formula Formula, functions *BuiltInFunctions) bool {
	ws := st.worksheet

	switch formula.Kind {
	case FormulaConstant:
		return true

	case FormulaReference:
		return ws.InBounds(formula.Ref)

	case FormulaOperation:
		spec, ok := functions.Spec(formula.Op)
		if !ok || len(formula.Operands) != spec.Arity {
			return false
		}
		for _, operand := range formula.Operands {
			switch operand.Kind {
			case OperandConstant:
				if spec.Shape != ShapeScalar {
					return false
				}
			case OperandCell:
				if spec.Shape != ShapeScalar || !ws.InBounds(operand.Cell) {
					return false
				}
			case OperandRange:
				if spec.Shape != ShapeRange || !ws.RangeInBounds(operand.Range) {
					return false
				}
			default:
				return false
			}
		}
		return true

	default:
		return false
	}
}

// precedentsOf returns the flattened indices a valid formula reads, ranges
// expanded. the result is never nil.
func (st *Storage) precedentsOf(formula Formula) map[int]struct{} {
	precedents := make(map[int]struct{})
	for addr := range formula.References() {
		precedents[st.worksheet.Index(addr)] = struct{}{}
	}
	return precedents
}

// readsCell reports whether formula reads addr itself, directly or through a
// range covering it
func readsCell(formula Formula, addr Address) bool {
	switch formula.Kind {
	case FormulaReference:
		return formula.Ref == addr
	case FormulaOperation:
		for _, operand := range formula.Operands {
			switch operand.Kind {
			case OperandCell:
				if operand.Cell == addr {
					return true
				}
			case OperandRange:
				if operand.Range.Contains(addr) {
					return true
				}
			}
		}
	}
	return false
}

// sortedOps returns operator ids in ascending order, so registration errors
// are reported the same way on every run
func sortedOps(operators map[OpID]OperatorSpec) []OpID {
	return slices.Sorted(maps.Keys(operators))
}
