package gui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lazyops/lazyops/pkg/api"
	"github.com/lazyops/lazyops/pkg/orchestrator"
)

func TestScreenString(t *testing.T) {
	tests := []struct {
		screen Screen
		want   string
	}{
		{ScreenApps, "apps"},
		{ScreenDeployments, "deployments"},
		{ScreenAudits, "audits"},
		{ScreenHelp, "help"},
		{ScreenLogin, "login"},
		{Screen(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.screen.String(); got != tt.want {
				t.Errorf("Screen(%d).String() = %q, want %q", tt.screen, got, tt.want)
			}
		})
	}
}

func TestScreenNextCycles(t *testing.T) {
	s := ScreenApps
	var seen []string
	for i := 0; i < 4; i++ {
		seen = append(seen, s.String())
		s = s.next()
	}
	if got := strings.Join(seen, ","); got != "apps,deployments,audits,apps" {
		t.Errorf("tab cycle = %s", got)
	}
}

// newTestGate returns a gate whose UI callbacks are queued for the test to
// run, standing in for the main loop.
func newTestGate() (*modalGate, chan func()) {
	posted := make(chan func(), 8)
	return newModalGate(func(fn func()) { posted <- fn }), posted
}

func TestModalGateConfirmDefaultsToNo(t *testing.T) {
	mg, posted := newTestGate()
	done := make(chan bool, 1)
	go func() { done <- mg.Confirm(context.Background(), `Kill process with PID "1234"?`) }()

	(<-posted)()
	m := mg.open()
	if m == nil || m.kind != modalConfirm {
		t.Fatalf("open modal = %+v, want confirm", m)
	}
	if m.confirm.yes() {
		t.Fatal("confirm should default to No")
	}
	mg.resolve(modalResult{ok: m.confirm.yes()})
	if <-done {
		t.Error("Confirm() = true after Enter on default")
	}
	if mg.open() != nil {
		t.Error("modal still open after resolve")
	}
}

func TestModalGateConfirmYes(t *testing.T) {
	mg, posted := newTestGate()
	done := make(chan bool, 1)
	go func() { done <- mg.Confirm(context.Background(), "Delete?") }()

	(<-posted)()
	m := mg.open()
	m.confirm.left()
	m.confirm.left()
	mg.resolve(modalResult{ok: m.confirm.yes()})
	if !<-done {
		t.Error("Confirm() = false after selecting Yes")
	}
}

func TestModalGateChooseBranch(t *testing.T) {
	mg, posted := newTestGate()
	type answer struct {
		choice orchestrator.BranchChoice
		ok     bool
	}
	done := make(chan answer, 1)
	req := orchestrator.BranchRequest{
		ApplicationID:  7,
		Branches:       []string{"deploy-2024-01-01", "main", "dev"},
		Default:        "main",
		RollbackPrefix: "deploy",
	}
	go func() {
		c, ok := mg.ChooseBranch(context.Background(), req)
		done <- answer{c, ok}
	}()

	(<-posted)()
	m := mg.open()
	if m == nil || m.kind != modalBranch {
		t.Fatalf("open modal = %+v, want branch chooser", m)
	}
	m.branch.move(-1)
	c, ok := m.branch.choice()
	if !ok {
		t.Fatal("choice() not confirmable with a default branch")
	}
	mg.resolve(modalResult{ok: true, choice: c})

	got := <-done
	if !got.ok || got.choice.Branch != "deploy-2024-01-01" || got.choice.Type != api.DeployRollback {
		t.Errorf("ChooseBranch() = %+v", got)
	}
}

func TestModalGateCancelledContextClosesModal(t *testing.T) {
	mg, posted := newTestGate()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := mg.EnterText(ctx, "Notes for deployment #4", "old")
		done <- ok
	}()

	(<-posted)()
	if m := mg.open(); m == nil || m.input.Text != "old" {
		t.Fatalf("text modal = %+v, want initial text", m)
	}
	cancel()
	if <-done {
		t.Error("EnterText() = ok after context cancellation")
	}
	(<-posted)()
	if mg.open() != nil {
		t.Error("modal still open after cancellation")
	}
}

func TestModalGateShowsOneQuestionAtATime(t *testing.T) {
	mg, posted := newTestGate()
	first := make(chan bool, 1)
	second := make(chan bool, 1)
	go func() { first <- mg.Confirm(context.Background(), "first") }()
	(<-posted)()

	go func() { second <- mg.Confirm(context.Background(), "second") }()
	select {
	case <-posted:
		t.Fatal("second modal posted while the first is open")
	case <-time.After(50 * time.Millisecond):
	}

	mg.resolve(modalResult{ok: true})
	if !<-first {
		t.Fatal("first Confirm() = false")
	}
	(<-posted)()
	if m := mg.open(); m == nil || m.confirm.Message != "second" {
		t.Fatalf("open modal = %+v, want second", m)
	}
	mg.resolve(modalResult{})
	if <-second {
		t.Error("second Confirm() = true")
	}
}

func TestResolveWithoutModalIsNoop(t *testing.T) {
	mg, _ := newTestGate()
	mg.resolve(modalResult{ok: true})
	if mg.open() != nil {
		t.Error("open() != nil")
	}
}

func TestBranchStateWithoutBranches(t *testing.T) {
	b := newBranchState(orchestrator.BranchRequest{})
	b.move(1)
	if _, ok := b.choice(); ok {
		t.Error("choice() confirmable with no branches")
	}
	if b.branch() != "" {
		t.Errorf("branch() = %q", b.branch())
	}
}

func TestBranchStateToggleAndClamp(t *testing.T) {
	b := newBranchState(orchestrator.BranchRequest{
		Branches:       []string{"main", "dev"},
		Default:        "main",
		RollbackPrefix: "deploy",
	})
	if b.typ != api.DeployClassic {
		t.Fatalf("initial type = %q", b.typ)
	}
	b.toggleType()
	if c, _ := b.choice(); c.Type != api.DeployRollback {
		t.Errorf("toggled type = %q", c.Type)
	}
	b.move(5)
	if b.branch() != "dev" {
		t.Errorf("branch after overshoot = %q", b.branch())
	}
	if b.typ != api.DeployClassic {
		t.Errorf("moving should re-propose the conventional type, got %q", b.typ)
	}
	b.move(-5)
	if b.branch() != "main" {
		t.Errorf("branch after undershoot = %q", b.branch())
	}
}

func TestOutcomeLine(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
		substr string
	}{
		{"ok", nil, "success", "Deploy billing completed in 1.5s"},
		{"cancelled", orchestrator.ErrCancelled, "info", "cancelled"},
		{"wrapped busy", fmt.Errorf("kill: %w", orchestrator.ErrBusy), "warning", "already running"},
		{"no pid", orchestrator.ErrNoKnownPID, "info", "no known process id"},
		{"not found", orchestrator.ErrNotFound, "warning", "no longer loaded"},
		{"failure", errors.New("connection refused"), "error", "failed in 1.5s: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := outcomeLine("Deploy billing", tt.err, 1500*time.Millisecond)
			if status != tt.status {
				t.Errorf("status = %q, want %q", status, tt.status)
			}
			if !strings.Contains(msg, tt.substr) {
				t.Errorf("message = %q, want it to contain %q", msg, tt.substr)
			}
		})
	}
}

func TestNextPage(t *testing.T) {
	tests := []struct {
		name               string
		page, pages, delta int
		want               int
		ok                 bool
	}{
		{"forward", 0, 3, 1, 1, true},
		{"back", 2, 3, -1, 1, true},
		{"before first", 0, 3, -1, 0, false},
		{"past last", 2, 3, 1, 2, false},
		{"unknown total", 4, 0, 1, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := nextPage(tt.page, tt.pages, tt.delta)
			if got != tt.want || ok != tt.ok {
				t.Errorf("nextPage(%d, %d, %d) = %d, %v; want %d, %v", tt.page, tt.pages, tt.delta, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := clamp(5, 3); got != 2 {
		t.Errorf("clamp(5, 3) = %d", got)
	}
	if got := clamp(-1, 3); got != 0 {
		t.Errorf("clamp(-1, 3) = %d", got)
	}
	if got := clamp(2, 0); got != 0 {
		t.Errorf("clamp(2, 0) = %d", got)
	}
}

func TestLoginFormCredentials(t *testing.T) {
	f := newLoginForm("", "")
	if f.focused() != f.email {
		t.Fatal("empty form should focus email")
	}
	if _, _, problem := f.credentials(); problem != "Email is required" {
		t.Errorf("problem = %q", problem)
	}
	f.email.Text = "  ops@example.com "
	if _, _, problem := f.credentials(); problem != "Password is required" {
		t.Errorf("problem = %q", problem)
	}
	f.switchFocus()
	for _, r := range "s3cret" {
		f.focused().insert(r)
	}
	email, password, problem := f.credentials()
	if problem != "" || email != "ops@example.com" || password != "s3cret" {
		t.Errorf("credentials() = %q, %q, %q", email, password, problem)
	}

	again := newLoginForm("ops@example.com", "Session expired")
	if again.focused() != again.password || !again.password.Masked {
		t.Error("re-login should focus the masked password field")
	}
}

func TestLocksFor(t *testing.T) {
	entries := []orchestrator.LockEntry{
		{Key: orchestrator.AppKey(7), Kind: orchestrator.ActionDeploy, State: orchestrator.StateInFlight},
		{Key: orchestrator.AppKey(8), Kind: orchestrator.ActionKill, State: orchestrator.StateGatePending},
		{Key: orchestrator.DeploymentKey(7), Kind: orchestrator.ActionEdit, State: orchestrator.StateInFlight},
	}
	got := locksFor(entries, orchestrator.AppKey(7))
	if len(got) != 1 || got[0] != "deploy (in-flight)" {
		t.Errorf("locksFor(app 7) = %v", got)
	}
	if got := locksFor(entries, orchestrator.AppKey(9)); len(got) != 0 {
		t.Errorf("locksFor(app 9) = %v", got)
	}
}

func TestRows(t *testing.T) {
	app := api.Application{ID: 7, Name: "billing"}
	if row := appRow(app, orchestrator.LabelStopped, false); strings.Contains(row, iconLock) {
		t.Errorf("idle row shows lock: %q", row)
	}
	if row := appRow(app, orchestrator.LabelStopped, true); !strings.Contains(row, iconLock) {
		t.Errorf("busy row hides lock: %q", row)
	}

	d := api.Deployment{ID: 4, Branch: "main", Status: "RUNNING"}
	row := deploymentRow(d, "billing", false)
	if !strings.Contains(row, "#4") || !strings.Contains(row, green(column("RUNNING", 10))) {
		t.Errorf("deploymentRow = %q", row)
	}
}

func TestDetails(t *testing.T) {
	pid := api.Int(1234)
	d := api.Deployment{ID: 4, Version: "v12", Branch: "main", Type: "CLASSIC", PID: pid}
	out := deploymentDetails(d, "billing", []string{"edit (gate-pending)"})
	for _, want := range []string{"v12", "billing", "1234", "edit (gate-pending)"} {
		if !strings.Contains(out, want) {
			t.Errorf("deploymentDetails missing %q:\n%s", want, out)
		}
	}

	a := api.Audit{Action: "DEPLOY", User: "ops", Details: map[string]any{"branch": "main", "applicationId": 7}}
	out = auditDetails(a)
	if strings.Index(out, "applicationId") > strings.Index(out, "branch") {
		t.Errorf("audit details not sorted:\n%s", out)
	}
}

func TestSpinnerTracksConcurrentTasks(t *testing.T) {
	s := NewSpinner(nil)
	if s.IsRunning() || s.String() != "" {
		t.Fatal("new spinner should be idle")
	}
	a := s.Start("Deploy billing")
	b := s.Start("Kill search")
	if !strings.Contains(s.String(), "Deploy billing, Kill search") {
		t.Errorf("String() = %q", s.String())
	}
	s.Done(a)
	s.Done(a)
	if !s.IsRunning() {
		t.Error("spinner stopped with a task still running")
	}
	s.Done(b)
	if s.IsRunning() || s.String() != "" {
		t.Error("spinner still running after last task")
	}
	c := s.Start("Reload")
	if !s.IsRunning() {
		t.Error("spinner did not restart")
	}
	s.Done(c)
}
