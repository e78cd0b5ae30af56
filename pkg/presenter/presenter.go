// Package presenter turns the controller's state into the single action
// button shown to the user.
package presenter

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"vault-solver/pkg/controller"
	"vault-solver/pkg/solver"
	"vault-solver/pkg/txstatus"
	"vault-solver/pkg/types"
)

// Button labels
const (
	LabelApprove  = "Approve"
	LabelDeposit  = "Deposit"
	LabelWithdraw = "Withdraw"
	LabelMigrate  = "Migrate"
)

// Button is what the action button shows
type Button struct {
	Label    string
	Disabled bool
	Busy     bool
}

// ButtonFor derives the button from the controller state, the active
// strategy and the request direction
func ButtonFor(state controller.State, kind solver.Kind, dir types.Direction, approving bool) Button {
	if state == controller.NeedsApproval {
		return Button{Label: LabelApprove, Busy: approving, Disabled: approving}
	}

	label := LabelDeposit
	switch {
	case dir == types.Withdraw:
		label = LabelWithdraw
	case kind.IsMigration():
		label = LabelMigrate
	}

	return Button{
		Label:    label,
		Disabled: state == controller.Disabled || state == controller.Executing,
		Busy:     state == controller.Executing,
	}
}

// Source is the part of the controller the presenter reads
type Source interface {
	State() controller.State
	Active() solver.Solver
	Request() (types.SolverRequest, bool)
	ApprovalStatus() *txstatus.Tracker
	ActionStatus() *txstatus.Tracker
}

// Presenter renders the button for one controller
type Presenter struct {
	src Source
	out io.Writer
	mu  sync.Mutex
}

// New creates a Presenter writing to out
func New(src Source, out io.Writer) *Presenter {
	return &Presenter{src: src, out: out}
}

// Button returns the current button
func (p *Presenter) Button() Button {
	kind := solver.Direct
	if active := p.src.Active(); active != nil {
		kind = active.Kind()
	}
	dir := types.Deposit
	if req, ok := p.src.Request(); ok {
		dir = req.Direction
	}
	return ButtonFor(p.src.State(), kind, dir, p.src.ApprovalStatus().IsPending())
}

// Render writes the current button
func (p *Presenter) Render() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Render(p.out, p.Button())
}

// Watch re-renders whenever either tracker changes. The returned function
// stops watching.
func (p *Presenter) Watch() func() {
	render := func(txstatus.State) { _ = p.Render() }
	stopApproval := p.src.ApprovalStatus().Subscribe(render)
	stopAction := p.src.ActionStatus().Subscribe(render)
	return func() {
		stopApproval()
		stopAction()
	}
}

// Render writes b as one colored line
func Render(w io.Writer, b Button) error {
	text := fmt.Sprintf("[ %s ]", b.Label)
	var err error
	switch {
	case b.Busy:
		_, err = color.New(color.FgYellow).Fprintf(w, "%s %s\n", text, "pending...")
	case b.Disabled:
		_, err = color.New(color.FgHiBlack).Fprintln(w, text)
	default:
		_, err = color.New(color.FgGreen, color.Bold).Fprintln(w, text)
	}
	return err
}
