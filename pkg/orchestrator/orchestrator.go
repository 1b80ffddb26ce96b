// Package orchestrator sequences deploy, kill and rollback against the
// deployment backend, guards every entity with an action lock and keeps the
// application, deployment and status caches in step with the server.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lazyops/lazyops/pkg/api"
	"go.uber.org/zap"
)

var (
	// ErrBusy means another action is pending or in flight on the entity.
	ErrBusy = errors.New("action already in progress")
	// ErrNoKnownPID means kill was requested without a known process id.
	ErrNoKnownPID = errors.New("no known process id")
	// ErrCancelled means the operator closed the gate. Not a failure.
	ErrCancelled = errors.New("cancelled")
	// ErrNotFound means the entity is not in the loaded caches.
	ErrNotFound = errors.New("not found")
	// ErrDeployFailed means the backend answered but a deploy step failed.
	ErrDeployFailed = errors.New("deploy failed")
)

// Backend is the subset of the API client the orchestrator drives.
type Backend interface {
	ListApplications(ctx context.Context) ([]api.Application, error)
	SearchDeployments(ctx context.Context, p api.SearchParams) (api.Page[api.Deployment], error)
	DeploymentStatus(ctx context.Context, applicationID int64) (api.DeploymentStatus, error)
	AvailableBranches(ctx context.Context, gitURL string) ([]string, error)
	Deploy(ctx context.Context, applicationID int64, branch string, typ api.DeployType) (api.DeployResult, error)
	Kill(ctx context.Context, pid int64) (string, error)
	CreateApplication(ctx context.Context, in api.ApplicationInput) (api.Application, error)
	UpdateApplication(ctx context.Context, id int64, in api.ApplicationInput) (api.Application, error)
	DeleteApplication(ctx context.Context, id int64) error
	DeleteDeployment(ctx context.Context, id int64) error
	UpdateNotes(ctx context.Context, id int64, notes string) (api.Deployment, error)
}

// Recorder receives action outcomes and lock hold times.
type Recorder interface {
	ObserveAction(action, outcome string)
	ObserveLockHold(action string, held time.Duration)
}

// Outcome labels passed to Recorder.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeCancelled = "cancelled"
	OutcomeBusy      = "busy"
	OutcomeSkipped   = "skipped"
)

const actionRollback = "rollback"

// Orchestrator owns the action locks and the read-through caches.
type Orchestrator struct {
	backend        Backend
	gate           Gate
	locks          *LockTable
	logger         *zap.Logger
	recorder       Recorder
	onChange       func()
	lockObserver   func(LockEvent)
	rollbackPrefix string
	concurrency    int

	mu            sync.RWMutex
	apps          []api.Application
	deployments   []api.Deployment
	totalElements int64
	totalPages    int
	filter        Filter
	statuses      map[int64]api.DeploymentStatus
	statusLoading map[int64]bool
	statusFailed  map[int64]bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithOnChange registers a callback fired after any lock or cache change.
// It runs on the goroutine that made the change.
func WithOnChange(fn func()) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// WithLockObserver receives every loading flag transition.
func WithLockObserver(fn func(LockEvent)) Option {
	return func(o *Orchestrator) { o.lockObserver = fn }
}

// WithRollbackPrefix sets the branch prefix the chooser treats as a rollback.
func WithRollbackPrefix(prefix string) Option {
	return func(o *Orchestrator) { o.rollbackPrefix = prefix }
}

// WithStatusConcurrency bounds the status fan-out on Load.
func WithStatusConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithPageSize sets the deployment history page size.
func WithPageSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.filter.Size = n
		}
	}
}

// New wires an orchestrator around backend and gate.
func New(backend Backend, gate Gate, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:        backend,
		gate:           gate,
		logger:         zap.NewNop(),
		rollbackPrefix: "deploy",
		concurrency:    4,
		filter:         Filter{Size: 10},
		statuses:       make(map[int64]api.DeploymentStatus),
		statusLoading:  make(map[int64]bool),
		statusFailed:   make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.locks = NewLockTable(o.observeLock)
	return o
}

func (o *Orchestrator) observeLock(ev LockEvent) {
	if !ev.Loading && o.recorder != nil {
		o.recorder.ObserveLockHold(string(ev.Kind), ev.Held)
	}
	if o.lockObserver != nil {
		o.lockObserver(ev)
	}
	o.changed()
}

func (o *Orchestrator) changed() {
	if o.onChange != nil {
		o.onChange()
	}
}

func (o *Orchestrator) record(action, outcome string) {
	if o.recorder != nil {
		o.recorder.ObserveAction(action, outcome)
	}
}

// IsAnyActionLoading reports whether any action is in flight on key.
func (o *Orchestrator) IsAnyActionLoading(key Key) bool {
	return o.locks.IsAnyActionLoading(key)
}

// IsLoading reports whether kind is in flight on key.
func (o *Orchestrator) IsLoading(key Key, kind ActionKind) bool {
	return o.locks.IsLoading(key, kind)
}

// operation tags ctx and the logger with a fresh correlation id.
func (o *Orchestrator) operation(ctx context.Context, action string, fields ...zap.Field) (context.Context, *zap.Logger) {
	id := uuid.NewString()
	log := o.logger.With(append([]zap.Field{zap.String("op", id), zap.String("action", action)}, fields...)...)
	return api.WithRequestID(ctx, id), log
}

// settle records the outcome of err and maps it for the caller.
func (o *Orchestrator) settle(action string, log *zap.Logger, err error) error {
	switch {
	case err == nil:
		o.record(action, OutcomeOK)
		log.Info("settled ok")
	case errors.Is(err, ErrCancelled):
		o.record(action, OutcomeCancelled)
		log.Debug("gate cancelled")
	case errors.Is(err, ErrBusy):
		o.record(action, OutcomeBusy)
		log.Info("refused", zap.Error(err))
	case errors.Is(err, ErrNoKnownPID), errors.Is(err, ErrNotFound):
		o.record(action, OutcomeSkipped)
		log.Info("precondition not met", zap.Error(err))
	default:
		o.record(action, OutcomeError)
		log.Warn("settled with error", zap.Error(err))
	}
	return err
}

// Deploy asks for a branch, confirms, and deploys it to the application.
func (o *Orchestrator) Deploy(ctx context.Context, appID int64, httpsURL string) error {
	ctx, log := o.operation(ctx, string(ActionDeploy), zap.Int64("application_id", appID))
	return o.settle(string(ActionDeploy), log, o.deploy(ctx, log, appID, httpsURL))
}

func (o *Orchestrator) deploy(ctx context.Context, log *zap.Logger, appID int64, httpsURL string) error {
	c, err := o.locks.claim(AppKey(appID), ActionDeploy)
	if err != nil {
		return err
	}
	defer c.settle()

	branches, err := o.backend.AvailableBranches(ctx, httpsURL)
	if err != nil {
		return fmt.Errorf("discover branches: %w", err)
	}
	req := BranchRequest{
		ApplicationID:  appID,
		GitURL:         httpsURL,
		Branches:       branches,
		Default:        DefaultBranch(branches),
		RollbackPrefix: o.rollbackPrefix,
	}
	choice, ok := o.gate.ChooseBranch(ctx, req)
	choice.Branch = strings.TrimSpace(choice.Branch)
	if !ok || choice.Branch == "" {
		return ErrCancelled
	}
	if !choice.Type.Valid() {
		choice.Type = req.TypeFor(choice.Branch)
	}
	if !o.gate.Confirm(ctx, deployPrompt(choice.Branch)) {
		return ErrCancelled
	}

	if err := c.acquire(); err != nil {
		return err
	}
	log.Info("deploying", zap.String("branch", choice.Branch), zap.String("type", string(choice.Type)))
	res, err := o.backend.Deploy(ctx, appID, choice.Branch, choice.Type)
	if err == nil {
		err = deployOutcome(res)
	}
	c.settle()
	if err != nil {
		return fmt.Errorf("deploy application %d: %w", appID, err)
	}
	o.afterMutation(ctx, log, appID)
	return nil
}

// deployOutcome turns a reported step failure into ErrDeployFailed.
func deployOutcome(res api.DeployResult) error {
	if res.Success {
		return nil
	}
	steps := []struct {
		name string
		res  api.CommandResult
	}{
		{"update", res.UpdateResult},
		{"build", res.BuildResult},
		{"run", res.RunResult},
	}
	for _, s := range steps {
		if !s.res.Success {
			if s.res.Error != "" {
				return fmt.Errorf("%w: %s step: %s", ErrDeployFailed, s.name, s.res.Error)
			}
			return fmt.Errorf("%w: %s step", ErrDeployFailed, s.name)
		}
	}
	return ErrDeployFailed
}

// Kill stops the live process of the application. Without a known PID it
// does nothing and returns ErrNoKnownPID.
func (o *Orchestrator) Kill(ctx context.Context, appID int64) error {
	ctx, log := o.operation(ctx, string(ActionKill), zap.Int64("application_id", appID))
	return o.settle(string(ActionKill), log, o.kill(ctx, log, appID))
}

func (o *Orchestrator) kill(ctx context.Context, log *zap.Logger, appID int64) error {
	st, ok := o.status(appID)
	pid, known := knownPID(st.PID)
	if !ok || !known {
		return fmt.Errorf("kill application %d: %w", appID, ErrNoKnownPID)
	}

	c, err := o.locks.claim(AppKey(appID), ActionKill)
	if err != nil {
		return err
	}
	defer c.settle()
	if !o.gate.Confirm(ctx, killPrompt(pid)) {
		return ErrCancelled
	}

	if err := c.acquire(); err != nil {
		return err
	}
	log.Info("killing", zap.Int64("pid", pid))
	out, err := o.backend.Kill(ctx, pid)
	c.settle()
	if err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	log.Debug("kill result", zap.String("output", out))
	o.afterMutation(ctx, log, appID)
	return nil
}

// Rollback stops the running deployment of target's application and then
// redeploys target's branch as a rollback. A failed kill aborts before any
// deploy request; nothing is compensated.
func (o *Orchestrator) Rollback(ctx context.Context, target api.Deployment) error {
	ctx, log := o.operation(ctx, actionRollback,
		zap.Int64("application_id", target.ApplicationID),
		zap.Int64("deployment_id", target.ID))
	return o.settle(actionRollback, log, o.rollback(ctx, log, target))
}

func (o *Orchestrator) rollback(ctx context.Context, log *zap.Logger, target api.Deployment) error {
	branch := strings.TrimSpace(target.Branch)
	if branch == "" {
		return fmt.Errorf("rollback deployment %d: %w: no branch recorded", target.ID, ErrNotFound)
	}
	deployClaim, err := o.locks.claim(AppKey(target.ApplicationID), ActionDeploy)
	if err != nil {
		return err
	}
	held := []*claim{deployClaim}
	defer func() { settleAll(held) }()
	if !o.gate.Confirm(ctx, rollbackPrompt(target)) {
		return ErrCancelled
	}
	if err := deployClaim.acquire(); err != nil {
		return err
	}

	if key, pid, ok := o.runningProcess(target.ApplicationID); ok {
		var killClaim *claim
		if key == deployClaim.key {
			killClaim, err = deployClaim.beside(ActionKill)
		} else {
			killClaim, err = o.locks.hold(key, ActionKill)
		}
		if err != nil {
			return err
		}
		held = append(held, killClaim)
		log.Info("stopping running process", zap.Stringer("holder", key), zap.Int64("pid", pid))
		if _, err := o.backend.Kill(ctx, pid); err != nil {
			return fmt.Errorf("rollback: kill pid %d: %w", pid, err)
		}
	}

	log.Info("deploying rollback", zap.String("branch", branch))
	res, err := o.backend.Deploy(ctx, target.ApplicationID, branch, api.DeployRollback)
	if err == nil {
		err = deployOutcome(res)
	}
	if err != nil {
		return fmt.Errorf("rollback: deploy branch %q: %w", branch, err)
	}
	settleAll(held)
	o.afterMutation(ctx, log, target.ApplicationID)
	return nil
}

// runningProcess finds the live process of an application and the key its
// kill lock goes on. A loaded running row wins, with the row's pid or else
// the cached status pid. Without a loaded row the cached status alone is
// enough, and the lock goes on the application.
func (o *Orchestrator) runningProcess(appID int64) (Key, int64, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st, cached := o.statuses[appID]
	statusPID, statusKnown := knownPID(st.PID)
	statusKnown = cached && st.IsRunning && statusKnown
	for _, d := range o.deployments {
		if d.ApplicationID != appID || !d.IsRunning() {
			continue
		}
		if pid, ok := knownPID(d.PID); ok {
			return DeploymentKey(d.ID), pid, true
		}
		if statusKnown {
			return DeploymentKey(d.ID), statusPID, true
		}
		return Key{}, 0, false
	}
	if statusKnown {
		return AppKey(appID), statusPID, true
	}
	return Key{}, 0, false
}

// knownPID treats an absent or non-positive pid as unknown.
func knownPID(f api.FlexInt) (int64, bool) {
	if !f.Set || f.Value <= 0 {
		return 0, false
	}
	return f.Value, true
}

// DeleteApplication confirms and removes an application.
func (o *Orchestrator) DeleteApplication(ctx context.Context, appID int64) error {
	ctx, log := o.operation(ctx, "delete_application", zap.Int64("application_id", appID))
	return o.settle(string(ActionDelete), log, o.deleteEntity(ctx, log, AppKey(appID), deleteApplicationPrompt, func(ctx context.Context) error {
		return o.backend.DeleteApplication(ctx, appID)
	}))
}

// DeleteDeployment confirms and removes a deployment history row.
func (o *Orchestrator) DeleteDeployment(ctx context.Context, id int64) error {
	ctx, log := o.operation(ctx, "delete_deployment", zap.Int64("deployment_id", id))
	return o.settle(string(ActionDelete), log, o.deleteEntity(ctx, log, DeploymentKey(id), deleteDeploymentPrompt, func(ctx context.Context) error {
		return o.backend.DeleteDeployment(ctx, id)
	}))
}

func (o *Orchestrator) deleteEntity(ctx context.Context, log *zap.Logger, key Key, prompt string, del func(context.Context) error) error {
	c, err := o.locks.claim(key, ActionDelete)
	if err != nil {
		return err
	}
	defer c.settle()
	if !o.gate.Confirm(ctx, prompt) {
		return ErrCancelled
	}
	if err := c.acquire(); err != nil {
		return err
	}
	err = del(ctx)
	c.settle()
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if key.Scope == ScopeApplication {
		o.forgetStatus(key.ID)
	}
	if err := o.reload(ctx); err != nil {
		log.Warn("reload after delete", zap.Error(err))
	}
	return nil
}

// EditNotes asks for new notes and saves them on the deployment.
func (o *Orchestrator) EditNotes(ctx context.Context, deploymentID int64) error {
	ctx, log := o.operation(ctx, "edit_notes", zap.Int64("deployment_id", deploymentID))
	return o.settle(string(ActionEdit), log, o.editNotes(ctx, deploymentID))
}

func (o *Orchestrator) editNotes(ctx context.Context, id int64) error {
	d, ok := o.deployment(id)
	if !ok {
		return fmt.Errorf("deployment %d: %w", id, ErrNotFound)
	}
	c, err := o.locks.claim(DeploymentKey(id), ActionEdit)
	if err != nil {
		return err
	}
	defer c.settle()
	notes, ok := o.gate.EnterText(ctx, notesPrompt(d), d.Notes)
	if !ok || notes == d.Notes {
		return ErrCancelled
	}
	if err := c.acquire(); err != nil {
		return err
	}
	updated, err := o.backend.UpdateNotes(ctx, id, notes)
	c.settle()
	if err != nil {
		return fmt.Errorf("update notes of deployment %d: %w", id, err)
	}
	if updated.ID == 0 {
		d.Notes = notes
		updated = d
	}
	o.replaceDeployment(updated)
	return nil
}
