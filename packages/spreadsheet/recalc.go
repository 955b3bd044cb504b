package spreadsheet

import (
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

// calculationLevels orders a dependents closure with Kahn's algorithm,
// counting only edges inside the closure. every cell in level n reads only
// cells outside the closure or in levels before n, so the cells of one level
// can be evaluated in any order, or at once.
//
// edits never commit a cycle, so a closure that cannot be fully ordered
// means the graph is corrupt. that is not recoverable and panics with an
// Internal AppError.
func (dg *DependencyGraph) calculationLevels(closure map[int]struct{}) [][]int {
	inDegree := make(map[int]int, len(closure))
	for index := range closure {
		degree := 0
		if node, exists := dg.nodes[index]; exists {
			for precedent := range node.Precedents {
				if _, inside := closure[precedent]; inside {
					degree++
				}
			}
		}
		inDegree[index] = degree
	}

	var current []int
	for index, degree := range inDegree {
		if degree == 0 {
			current = append(current, index)
		}
	}

	var levels [][]int
	ordered := 0
	for len(current) > 0 {
		// sort cells for deterministic order within a level
		slices.Sort(current)
		levels = append(levels, current)
		ordered += len(current)

		var next []int
		for _, index := range current {
			node, exists := dg.nodes[index]
			if !exists {
				continue
			}
			for dependent := range node.Dependents {
				if _, inside := closure[dependent]; !inside {
					continue
				}
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if ordered != len(closure) {
		panic(NewApplicationError(Internal,
			fmt.Sprintf("spreadsheet: dependency graph holds a cycle: ordered %d of %d cells", ordered, len(closure))))
	}
	return levels
}

// evalResult is the outcome of evaluating one cell
type evalResult struct {
	value int64
	code  ErrorCode
}

// evaluate computes a cell from the current store contents. it only reads,
// so cells of one level can be evaluated concurrently.
func (s *Spreadsheet) evaluate(addr Address) evalResult {
	ws := s.storage.worksheet
	cell := ws.GetCell(addr)
	if cell.Formula == nil {
		return evalResult{value: cell.Value}
	}

	formula := cell.Formula
	switch formula.Kind {
	case FormulaConstant:
		return evalResult{value: formula.Value}

	case FormulaReference:
		ref := ws.GetCell(formula.Ref)
		return evalResult{value: ref.Value, code: errorOf(ref)}

	case FormulaOperation:
		spec, ok := s.functions.Spec(formula.Op)
		if !ok {
			return evalResult{value: cell.Value, code: ErrorCodeValue}
		}

		args := make([]int64, 0, len(formula.Operands))
		for _, operand := range formula.Operands {
			switch operand.Kind {
			case OperandConstant:
				args = append(args, operand.Value)
			case OperandCell, OperandRange:
				for member := range operand.References() {
					precedent := ws.GetCell(member)
					if precedent.IsError {
						// error is contagious; the first errored member decides
						return evalResult{value: cell.Value, code: errorOf(precedent)}
					}
					args = append(args, precedent.Value)
				}
			}
		}

		value, code := spec.Eval(args)
		if code != ErrorCodeNone {
			// an errored cell keeps its last good value
			return evalResult{value: cell.Value, code: code}
		}
		return evalResult{value: value}
	}

	return evalResult{value: cell.Value, code: ErrorCodeValue}
}

func errorOf(c Cell) ErrorCode {
	if !c.IsError {
		return ErrorCodeNone
	}
	if c.ErrorCode == ErrorCodeNone {
		return ErrorCodeRef
	}
	return c.ErrorCode
}

// recalculate evaluates the ordered levels and writes results back. a level
// at least parallelThreshold wide is evaluated on an errgroup; its results
// are published only once every cell of the level has finished.
func (s *Spreadsheet) recalculate(levels [][]int) (parallelLevels int) {
	ws := s.storage.worksheet

	for _, level := range levels {
		if len(level) >= s.parallelThreshold && s.maxWorkers > 1 {
			results := make([]evalResult, len(level))

			var g errgroup.Group
			g.SetLimit(s.maxWorkers)
			for i, index := range level {
				g.Go(func() error {
					results[i] = s.evaluate(ws.Address(index))
					return nil
				})
			}
			_ = g.Wait() // evaluation failures are recorded per cell

			for i, index := range level {
				ws.SetResult(ws.Address(index), results[i].value, results[i].code)
			}
			parallelLevels++
			continue
		}

		for _, index := range level {
			addr := ws.Address(index)
			result := s.evaluate(addr)
			ws.SetResult(addr, result.value, result.code)
		}
	}
	return parallelLevels
}
