package ui

import (
	"bytes"
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Program runs the live view.
type Program struct {
	ctx     context.Context
	program *tea.Program
	sink    *Sink
}

// NewProgram prepares the live view. Nothing is drawn until Run.
func NewProgram(ctx context.Context, opts Options) *Program {
	p := tea.NewProgram(New(opts),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	return &Program{ctx: ctx, program: p, sink: NewSink(p)}
}

// Sink returns the writer that feeds relayed output into the view.
func (p *Program) Sink() *Sink {
	return p.sink
}

// Run blocks until the operator quits or ctx is cancelled. Cancellation is
// not an error.
func (p *Program) Run() error {
	_, err := p.program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && p.ctx.Err() != nil {
		return nil
	}
	return err
}

// Quit asks the program to exit.
func (p *Program) Quit() {
	p.program.Quit()
}

type sender interface {
	Send(msg tea.Msg)
}

// Sink is an io.Writer that turns written bytes into view lines. Each Write
// carries whole records; text after the last newline is shown as its own row,
// so a line cut at the assembler's capacity stays one bounded row.
type Sink struct {
	mu sync.Mutex
	to sender
}

// NewSink returns a Sink delivering lines to the given program.
func NewSink(to sender) *Sink {
	return &Sink{to: to}
}

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(p) == 0 {
		return 0, nil
	}
	var lines []string
	for _, line := range bytes.Split(bytes.TrimSuffix(p, []byte{'\n'}), []byte{'\n'}) {
		lines = append(lines, string(line))
	}
	s.to.Send(linesMsg(lines))
	return len(p), nil
}
