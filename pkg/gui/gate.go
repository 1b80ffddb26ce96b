package gui

import (
	"context"

	"github.com/lazyops/lazyops/pkg/api"
	"github.com/lazyops/lazyops/pkg/orchestrator"
)

// modalKind says which modal is on screen.
type modalKind int

const (
	modalConfirm modalKind = iota
	modalBranch
	modalText
)

func (k modalKind) String() string {
	switch k {
	case modalConfirm:
		return "confirm"
	case modalBranch:
		return "branch"
	case modalText:
		return "input"
	default:
		return "unknown"
	}
}

type modalResult struct {
	ok     bool
	text   string
	choice orchestrator.BranchChoice
}

// modal is one pending gate question. Its state is only touched on the UI
// goroutine; the asking goroutine waits on done.
type modal struct {
	kind    modalKind
	title   string
	confirm *confirmState
	branch  *branchState
	input   *inputState
	done    chan modalResult
}

// modalGate implements orchestrator.Gate on top of the console. Questions
// are shown one at a time; post schedules a function on the UI goroutine.
type modalGate struct {
	slot    chan struct{}
	post    func(func())
	current *modal
}

func newModalGate(post func(func())) *modalGate {
	return &modalGate{slot: make(chan struct{}, 1), post: post}
}

func (mg *modalGate) ask(ctx context.Context, m *modal) modalResult {
	select {
	case mg.slot <- struct{}{}:
	case <-ctx.Done():
		return modalResult{}
	}
	defer func() { <-mg.slot }()

	m.done = make(chan modalResult, 1)
	mg.post(func() { mg.current = m })
	select {
	case r := <-m.done:
		return r
	case <-ctx.Done():
		mg.post(func() {
			if mg.current == m {
				mg.current = nil
			}
		})
		return modalResult{}
	}
}

// resolve answers the modal on screen. Call it on the UI goroutine.
func (mg *modalGate) resolve(r modalResult) {
	m := mg.current
	if m == nil {
		return
	}
	mg.current = nil
	m.done <- r
}

// open reports the modal on screen, if any. Call it on the UI goroutine.
func (mg *modalGate) open() *modal {
	return mg.current
}

func (mg *modalGate) ChooseBranch(ctx context.Context, req orchestrator.BranchRequest) (orchestrator.BranchChoice, bool) {
	r := mg.ask(ctx, &modal{kind: modalBranch, title: "Deploy", branch: newBranchState(req)})
	return r.choice, r.ok
}

func (mg *modalGate) Confirm(ctx context.Context, prompt string) bool {
	r := mg.ask(ctx, &modal{kind: modalConfirm, title: "Confirm", confirm: newConfirmState(prompt)})
	return r.ok
}

func (mg *modalGate) EnterText(ctx context.Context, prompt, initial string) (string, bool) {
	r := mg.ask(ctx, &modal{kind: modalText, title: prompt, input: newInputState(initial, false)})
	return r.text, r.ok
}

// branchState backs the branch chooser.
type branchState struct {
	req      orchestrator.BranchRequest
	selected int
	typ      api.DeployType
}

func newBranchState(req orchestrator.BranchRequest) *branchState {
	b := &branchState{req: req}
	for i, name := range req.Branches {
		if name == req.Default {
			b.selected = i
			break
		}
	}
	if req.Default != "" {
		b.typ = req.TypeFor(req.Default)
	}
	return b
}

func (b *branchState) branch() string {
	if b.selected < 0 || b.selected >= len(b.req.Branches) {
		return ""
	}
	return b.req.Branches[b.selected]
}

// move changes the selection and re-proposes the conventional deploy type.
func (b *branchState) move(delta int) {
	if len(b.req.Branches) == 0 {
		return
	}
	b.selected += delta
	if b.selected < 0 {
		b.selected = 0
	}
	if b.selected >= len(b.req.Branches) {
		b.selected = len(b.req.Branches) - 1
	}
	b.typ = b.req.TypeFor(b.branch())
}

func (b *branchState) toggleType() {
	if b.typ == api.DeployRollback {
		b.typ = api.DeployClassic
	} else {
		b.typ = api.DeployRollback
	}
}

// choice returns the selection, or false while nothing can be confirmed.
func (b *branchState) choice() (orchestrator.BranchChoice, bool) {
	if !b.req.CanConfirm() || b.branch() == "" {
		return orchestrator.BranchChoice{}, false
	}
	return orchestrator.BranchChoice{Branch: b.branch(), Type: b.typ}, true
}
