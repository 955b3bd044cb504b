package driver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vogtb/gridcalc/packages/config"
	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

var tracer = otel.Tracer("gridcalc.driver")

// Stats counts what a session has done
type Stats struct {
	Steps     int
	Committed int
	Rejected  int
	Failed    int
}

// Session drives one grid. it owns the viewport and output flag, and it is
// where the edit status is consumed: the prompt shows the status of the last
// edit once, then resets it.
type Session struct {
	id       uuid.UUID
	grid     *spreadsheet.Spreadsheet
	view     Viewport
	output   bool
	elapsed  time.Duration
	rejected bool // a step failed to parse; reported as Invalid Input
	stats    Stats
	out      io.Writer
	logger   *slog.Logger
}

// NewSession creates a session over grid that renders to out
func NewSession(grid *spreadsheet.Spreadsheet, cfg config.Driver, out io.Writer, logger *slog.Logger) *Session {
	id := uuid.New()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		id:     id,
		grid:   grid,
		view:   NewViewport(cfg.ViewportSize),
		output: cfg.Output,
		out:    out,
		logger: logger.With(slog.String("session", id.String())),
	}
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Viewport() Viewport {
	return s.view
}

func (s *Session) OutputEnabled() bool {
	return s.output
}

func (s *Session) Stats() Stats {
	return s.stats
}

// ConsumeStatus returns the status to show for the last step and resets it
// to neutral, so each outcome is displayed exactly once
func (s *Session) ConsumeStatus() spreadsheet.Status {
	status := s.grid.StatusOfLastEdit()
	if s.rejected {
		status = spreadsheet.StatusInvalidInput
	}
	s.rejected = false
	s.grid.ResetStatus()
	return status
}

// Prompt renders the status line shown before each command. it consumes the
// status.
func (s *Session) Prompt() string {
	return fmt.Sprintf("[%.1f] (%s) > ", s.elapsed.Seconds(), s.ConsumeStatus())
}

// Apply executes one step. malformed cell labels and unknown operators are
// not errors: they are reported through the status like any rejected edit.
// the returned error covers steps that cannot be carried out at all.
func (s *Session) Apply(ctx context.Context, step Step) error {
	ctx, span := tracer.Start(ctx, "driver.Apply",
		trace.WithAttributes(
			attribute.String("session.id", s.id.String()),
			attribute.String("step", step.String()),
		),
	)
	defer span.End()

	start := time.Now()
	err := s.apply(ctx, step)
	s.elapsed = time.Since(start)
	s.stats.Steps++

	if err != nil {
		s.stats.Failed++
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Session) apply(ctx context.Context, step Step) error {
	switch {
	case step.Set != nil:
		return s.edit(ctx, step.Set.Cell, func() (spreadsheet.Formula, error) {
			return spreadsheet.Const(*step.Set.Value), nil
		})

	case step.Ref != nil:
		return s.edit(ctx, step.Ref.Cell, func() (spreadsheet.Formula, error) {
			from, err := spreadsheet.ParseAddress(step.Ref.From)
			if err != nil {
				return spreadsheet.Formula{}, err
			}
			return spreadsheet.Ref(from), nil
		})

	case step.Op != nil:
		return s.edit(ctx, step.Op.Cell, func() (spreadsheet.Formula, error) {
			return s.opFormula(step.Op)
		})

	case step.Clear != "":
		return s.edit(ctx, step.Clear, func() (spreadsheet.Formula, error) {
			return spreadsheet.Const(0), nil
		})

	case step.Scroll != "":
		return s.scroll(step.Scroll)

	case step.Output != "":
		s.output = step.Output == "on"
		return nil

	case len(step.Print) > 0:
		return s.print(step.Print)

	default:
		return fmt.Errorf("%w: empty step", ErrInvalidScript)
	}
}

func (s *Session) edit(ctx context.Context, label string, build func() (spreadsheet.Formula, error)) error {
	s.rejected = false

	addr, err := spreadsheet.ParseAddress(label)
	if err == nil {
		var formula spreadsheet.Formula
		if formula, err = build(); err == nil {
			status := s.grid.Edit(ctx, addr, formula)
			if status.Committed() {
				s.stats.Committed++
			} else {
				s.stats.Rejected++
			}
			return nil
		}
	}

	s.logger.Debug("step rejected", slog.String("cell", label), slog.Any("error", err))
	s.rejected = true
	s.stats.Rejected++
	return nil
}

func (s *Session) opFormula(step *OpStep) (spreadsheet.Formula, error) {
	op, ok := s.grid.LookupOperator(step.Name)
	if !ok {
		return spreadsheet.Formula{}, fmt.Errorf("unknown operator %q", step.Name)
	}
	operands := make([]spreadsheet.Operand, 0, len(step.Args))
	for _, arg := range step.Args {
		operand, err := ParseOperand(arg)
		if err != nil {
			return spreadsheet.Formula{}, err
		}
		operands = append(operands, operand)
	}
	return spreadsheet.Op(op, operands...), nil
}

func (s *Session) scroll(target string) error {
	rows, columns := s.grid.Rows(), s.grid.Columns()
	switch target {
	case "w":
		s.view.Up()
	case "s":
		s.view.Down(rows)
	case "a":
		s.view.Left()
	case "d":
		s.view.Right(columns)
	default:
		addr, err := spreadsheet.ParseAddress(target)
		if err != nil {
			return fmt.Errorf("scroll to %q: %w", target, err)
		}
		return s.view.ScrollTo(addr, rows, columns)
	}
	return nil
}

func (s *Session) print(labels []string) error {
	for _, label := range labels {
		addr, err := spreadsheet.ParseAddress(label)
		if err != nil {
			return fmt.Errorf("print %q: %w", label, err)
		}
		value, isError, err := s.grid.Read(addr)
		if err != nil {
			return fmt.Errorf("print %q: %w", label, err)
		}
		if isError {
			fmt.Fprintf(s.out, "%s = ERR\n", label)
		} else {
			fmt.Fprintf(s.out, "%s = %d\n", label, value)
		}
	}
	return nil
}

// Run executes every step of a script in order, echoing each command after
// its prompt and rendering the viewport after each step while output is on.
// failed steps are logged and skipped; only context cancellation stops a run.
func (s *Session) Run(ctx context.Context, script *Script) error {
	s.logger.Info("running script",
		slog.Int("steps", len(script.Steps)),
		slog.Int("rows", s.grid.Rows()),
		slog.Int("columns", s.grid.Columns()),
	)

	if s.output {
		if err := Dump(s.out, s.grid, &s.view); err != nil {
			return err
		}
	}

	for i, step := range script.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("script stopped at step %d: %w", i+1, err)
		}

		fmt.Fprintf(s.out, "%s%s\n", s.Prompt(), step)
		if err := s.Apply(ctx, step); err != nil {
			s.logger.Warn("step failed", slog.Int("step", i+1), slog.String("command", step.String()), slog.Any("error", err))
		}

		if s.output {
			if err := Dump(s.out, s.grid, &s.view); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(s.out, "%s\n", s.Prompt())
	s.logger.Info("script finished",
		slog.Int("committed", s.stats.Committed),
		slog.Int("rejected", s.stats.Rejected),
		slog.Int("failed", s.stats.Failed),
	)
	return nil
}
