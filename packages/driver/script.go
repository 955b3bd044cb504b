// Package driver runs edit scripts against a grid: it owns the viewport,
// turns script steps into engine edits, and renders the visible region.
package driver

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

var (
	// ErrInvalidScript is returned when a script fails validation
	ErrInvalidScript = errors.New("invalid script")

	// ErrBadOperand is returned for an op argument that is neither an
	// integer, a cell label, nor a range label
	ErrBadOperand = errors.New("bad operand")
)

// Script is a YAML edit script. Rows and Columns size the grid unless the
// command line overrides them.
type Script struct {
	Rows    int    `yaml:"rows" validate:"gte=0"`
	Columns int    `yaml:"columns" validate:"gte=0"`
	Steps   []Step `yaml:"steps" validate:"required,min=1,dive"`
}

// Step is one script command. exactly one field is set.
type Step struct {
	Set    *SetStep `yaml:"set,omitempty"`
	Ref    *RefStep `yaml:"ref,omitempty"`
	Op     *OpStep  `yaml:"op,omitempty"`
	Clear  string   `yaml:"clear,omitempty"`
	Scroll string   `yaml:"scroll,omitempty"`
	Output string   `yaml:"output,omitempty" validate:"omitempty,oneof=on off"`
	Print  []string `yaml:"print,omitempty" validate:"omitempty,dive,required"`
}

// SetStep stores a constant
type SetStep struct {
	Cell  string `yaml:"cell" validate:"required"`
	Value *int64 `yaml:"value" validate:"required"`
}

// RefStep makes a cell copy another
type RefStep struct {
	Cell string `yaml:"cell" validate:"required"`
	From string `yaml:"from" validate:"required"`
}

// OpStep applies a named operator. each argument is an integer, a cell
// label such as "B2", or a range label such as "A1:C3".
type OpStep struct {
	Cell string   `yaml:"cell" validate:"required"`
	Name string   `yaml:"name" validate:"required"`
	Args []string `yaml:"args" validate:"min=1,max=2,dive,required"`
}

func (s Step) commands() int {
	n := 0
	for _, set := range []bool{
		s.Set != nil, s.Ref != nil, s.Op != nil,
		s.Clear != "", s.Scroll != "", s.Output != "", len(s.Print) > 0,
	} {
		if set {
			n++
		}
	}
	return n
}

func (s Step) String() string {
	switch {
	case s.Set != nil:
		return fmt.Sprintf("%s=%d", s.Set.Cell, *s.Set.Value)
	case s.Ref != nil:
		return s.Ref.Cell + "=" + s.Ref.From
	case s.Op != nil:
		return fmt.Sprintf("%s=%s(%s)", s.Op.Cell, s.Op.Name, strings.Join(s.Op.Args, ","))
	case s.Clear != "":
		return "clear " + s.Clear
	case s.Scroll != "":
		if isPageKey(s.Scroll) {
			return s.Scroll
		}
		return "scroll_to " + s.Scroll
	case s.Output == "off":
		return "disable_output"
	case s.Output == "on":
		return "enable_output"
	case len(s.Print) > 0:
		return "print " + strings.Join(s.Print, " ")
	default:
		return "<empty>"
	}
}

func isPageKey(s string) bool {
	switch s {
	case "w", "a", "s", "d":
		return true
	}
	return false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		step := sl.Current().Interface().(Step)
		if step.commands() != 1 {
			sl.ReportError(step, "Step", "Step", "one_command", "")
		}
	}, Step{})
	return v
}

// ParseScript decodes and validates a YAML script
func ParseScript(data []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parsing script: %w", err)
	}
	if err := validate.Struct(script); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %s failed %q", ErrInvalidScript, verrs[0].Namespace(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return &script, nil
}

// LoadScript reads and validates a script file
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	script, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return script, nil
}

// ParseOperand reads one op argument
func ParseOperand(arg string) (spreadsheet.Operand, error) {
	if value, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return spreadsheet.ConstArg(value), nil
	}
	if strings.Contains(arg, ":") {
		r, err := spreadsheet.ParseRange(arg)
		if err != nil {
			return spreadsheet.Operand{}, fmt.Errorf("%w %q: %w", ErrBadOperand, arg, err)
		}
		return spreadsheet.RangeArg(r), nil
	}
	addr, err := spreadsheet.ParseAddress(arg)
	if err != nil {
		return spreadsheet.Operand{}, fmt.Errorf("%w %q: %w", ErrBadOperand, arg, err)
	}
	return spreadsheet.CellArg(addr), nil
}
