package driver

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/gridcalc/packages/config"
	"github.com/vogtb/gridcalc/packages/spreadsheet"
)

func newSession(t *testing.T, rows, columns int) (*Session, *bytes.Buffer) {
	t.Helper()
	grid, err := spreadsheet.CreateGrid(rows, columns)
	require.NoError(t, err)
	var out bytes.Buffer
	return NewSession(grid, config.Default().Driver, &out, nil), &out
}

func int64p(v int64) *int64 {
	return &v
}

func TestViewportPaging(t *testing.T) {
	t.Run("UpAndLeftClampAtZero", func(t *testing.T) {
		v := Viewport{Row: 4, Col: 25, Size: 10}
		v.Up()
		v.Left()
		assert.Equal(t, Viewport{Row: 0, Col: 15, Size: 10}, v)
	})

	t.Run("DownSnapsToLastPage", func(t *testing.T) {
		v := NewViewport(10)
		v.Down(25)
		assert.Equal(t, 10, v.Row)
		v.Down(25)
		assert.Equal(t, 15, v.Row)
		v.Down(25)
		assert.Equal(t, 15, v.Row, "last row already visible")
	})

	t.Run("SmallGridDoesNotMove", func(t *testing.T) {
		v := NewViewport(10)
		v.Down(5)
		v.Right(5)
		assert.Equal(t, NewViewport(10), v)
	})

	t.Run("ScrollTo", func(t *testing.T) {
		v := NewViewport(10)
		require.NoError(t, v.ScrollTo(spreadsheet.MustParseAddress("C7"), 20, 20))
		assert.Equal(t, Viewport{Row: 6, Col: 2, Size: 10}, v)

		err := v.ScrollTo(spreadsheet.MustParseAddress("Z1"), 20, 20)
		assert.ErrorIs(t, err, ErrScrollOutOfBounds)
		assert.Equal(t, Viewport{Row: 6, Col: 2, Size: 10}, v)
	})
}

func TestDump(t *testing.T) {
	grid, err := spreadsheet.CreateGrid(2, 3)
	require.NoError(t, err)
	ctx := context.Background()
	grid.Edit(ctx, spreadsheet.MustParseAddress("A1"), spreadsheet.Const(5))
	grid.Edit(ctx, spreadsheet.MustParseAddress("B2"),
		spreadsheet.Op(spreadsheet.OpDiv, spreadsheet.ConstArg(1), spreadsheet.ConstArg(0)))

	var out bytes.Buffer
	v := NewViewport(10)
	require.NoError(t, Dump(&out, grid, &v))

	expected := "" +
		"       A        B        C    \n" +
		"  1    5        0        0    \n" +
		"  2    0       ERR       0    \n"
	assert.Equal(t, expected, out.String())
}

func TestParseScript(t *testing.T) {
	t.Run("AllCommands", func(t *testing.T) {
		script, err := ParseScript([]byte(`
rows: 3
columns: 3
steps:
  - set: {cell: A1, value: 5}
  - ref: {cell: B1, from: A1}
  - op: {cell: C1, name: add, args: [B1, "1"]}
  - clear: A1
  - scroll: d
  - scroll: B2
  - output: "off"
  - print: [A1, C1]
`))
		require.NoError(t, err)
		assert.Equal(t, 3, script.Rows)
		require.Len(t, script.Steps, 8)

		commands := make([]string, len(script.Steps))
		for i, step := range script.Steps {
			commands[i] = step.String()
		}
		assert.Equal(t, []string{
			"A1=5", "B1=A1", "C1=add(B1,1)", "clear A1",
			"d", "scroll_to B2", "disable_output", "print A1 C1",
		}, commands)
	})

	t.Run("Invalid", func(t *testing.T) {
		cases := map[string]string{
			"NoSteps":       "rows: 3\ncolumns: 3\n",
			"TwoCommands":   "steps:\n  - clear: A1\n    scroll: w\n",
			"EmptyStep":     "steps:\n  - {}\n",
			"MissingValue":  "steps:\n  - set: {cell: A1}\n",
			"TooManyArgs":   "steps:\n  - op: {cell: A1, name: ADD, args: [\"1\", \"2\", \"3\"]}\n",
			"NoArgs":        "steps:\n  - op: {cell: A1, name: ADD, args: []}\n",
			"BadOutputFlag": "steps:\n  - output: maybe\n",
			"NegativeRows":  "rows: -1\nsteps:\n  - clear: A1\n",
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := ParseScript([]byte(body))
				assert.ErrorIs(t, err, ErrInvalidScript)
			})
		}
	})
}

func TestParseOperand(t *testing.T) {
	operand, err := ParseOperand("-12")
	require.NoError(t, err)
	assert.Equal(t, spreadsheet.ConstArg(-12), operand)

	operand, err = ParseOperand("B3")
	require.NoError(t, err)
	assert.Equal(t, spreadsheet.CellArg(spreadsheet.Address{Row: 2, Column: 1}), operand)

	operand, err = ParseOperand("A1:B2")
	require.NoError(t, err)
	assert.Equal(t, spreadsheet.RangeArg(spreadsheet.MustParseRange("A1:B2")), operand)

	for _, arg := range []string{"b3", "A1:", "1.5", ""} {
		_, err := ParseOperand(arg)
		assert.ErrorIs(t, err, ErrBadOperand, "%q", arg)
	}
}

func TestSessionStatusIsConsumedOnce(t *testing.T) {
	session, _ := newSession(t, 3, 3)
	ctx := context.Background()

	assert.Equal(t, "[0.0] (ok) > ", session.Prompt())

	require.NoError(t, session.Apply(ctx, Step{Set: &SetStep{Cell: "A1", Value: int64p(5)}}))
	assert.Equal(t, spreadsheet.StatusOK, session.ConsumeStatus())
	assert.Equal(t, spreadsheet.StatusNone, session.ConsumeStatus())

	require.NoError(t, session.Apply(ctx, Step{Ref: &RefStep{Cell: "A1", From: "A1"}}))
	assert.Contains(t, session.Prompt(), "(cyclic dependence)")
	assert.Contains(t, session.Prompt(), "(ok)")

	// malformed labels never reach the engine but still report Invalid Input
	require.NoError(t, session.Apply(ctx, Step{Ref: &RefStep{Cell: "A1", From: "a1"}}))
	assert.Equal(t, spreadsheet.StatusInvalidInput, session.ConsumeStatus())

	require.NoError(t, session.Apply(ctx, Step{Op: &OpStep{Cell: "B1", Name: "POW", Args: []string{"A1", "2"}}}))
	assert.Equal(t, spreadsheet.StatusInvalidInput, session.ConsumeStatus())

	// a valid label outside the grid is the engine's rejection
	require.NoError(t, session.Apply(ctx, Step{Clear: "D4"}))
	assert.Equal(t, spreadsheet.StatusInvalidInput, session.ConsumeStatus())

	assert.Equal(t, Stats{Steps: 5, Committed: 1, Rejected: 4}, session.Stats())
}

func TestSessionScrollAndPrint(t *testing.T) {
	session, out := newSession(t, 30, 30)
	ctx := context.Background()

	require.NoError(t, session.Apply(ctx, Step{Scroll: "s"}))
	require.NoError(t, session.Apply(ctx, Step{Scroll: "d"}))
	assert.Equal(t, Viewport{Row: 10, Col: 10, Size: 10}, session.Viewport())

	err := session.Apply(ctx, Step{Scroll: "AA99"})
	assert.ErrorIs(t, err, ErrScrollOutOfBounds)
	assert.Equal(t, 1, session.Stats().Failed)

	require.NoError(t, session.Apply(ctx, Step{Output: "off"}))
	assert.False(t, session.OutputEnabled())

	require.NoError(t, session.Apply(ctx, Step{Op: &OpStep{Cell: "A2", Name: "DIV", Args: []string{"1", "0"}}}))
	require.NoError(t, session.Apply(ctx, Step{Set: &SetStep{Cell: "A1", Value: int64p(-3)}}))
	require.NoError(t, session.Apply(ctx, Step{Print: []string{"A1", "A2"}}))
	assert.Equal(t, "A1 = -3\nA2 = ERR\n", out.String())
}

func TestSessionRun(t *testing.T) {
	script, err := ParseScript([]byte(`
steps:
  - set: {cell: A1, value: 5}
  - op: {cell: B1, name: ADD, args: [A1, "1"]}
  - set: {cell: A1, value: 10}
  - ref: {cell: C1, from: A1}
  - op: {cell: A1, name: ADD, args: [C1, "1"]}
  - output: "off"
  - print: [A1, B1]
`))
	require.NoError(t, err)

	session, out := newSession(t, 3, 3)
	require.NoError(t, session.Run(context.Background(), script))

	lines := strings.Split(out.String(), "\n")
	var prompts []string
	for _, line := range lines {
		if strings.HasPrefix(line, "[") {
			prompts = append(prompts, line[strings.Index(line, "("):])
		}
	}
	assert.Equal(t, []string{
		"(ok) > A1=5",
		"(ok) > B1=ADD(A1,1)",
		"(ok) > A1=10",
		"(ok) > C1=A1",
		"(ok) > A1=ADD(C1,1)",
		"(cyclic dependence) > disable_output",
		"(ok) > print A1 B1",
		"(ok) > ",
	}, prompts)
	assert.Contains(t, out.String(), "A1 = 10\nB1 = 11\n")
	assert.Equal(t, Stats{Steps: 7, Committed: 4, Rejected: 1}, session.Stats())
}

func TestSessionRunStopsOnCancel(t *testing.T) {
	script := &Script{Steps: []Step{{Clear: "A1"}}}
	session, _ := newSession(t, 3, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, session.Run(ctx, script), context.Canceled)
}

func TestSessionIDTagsLogs(t *testing.T) {
	grid, err := spreadsheet.CreateGrid(3, 3)
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	first := NewSession(grid, config.Default().Driver, &bytes.Buffer{}, logger)
	second := NewSession(grid, config.Default().Driver, &bytes.Buffer{}, logger)

	assert.NotEqual(t, uuid.Nil, first.ID())
	assert.NotEqual(t, first.ID(), second.ID())

	require.NoError(t, first.Run(context.Background(), &Script{Steps: []Step{{Clear: "A1"}}}))
	assert.Contains(t, logs.String(), "session="+first.ID().String())
	assert.NotContains(t, logs.String(), second.ID().String())
}
