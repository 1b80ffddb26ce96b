package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/lazyops/lazyops/pkg/api"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Filter selects the page of deployment history held in the cache.
type Filter struct {
	ApplicationID int64
	CreatedDate   time.Time
	Page          int
	Size          int
}

// SetFilter changes the deployment history filter. It takes effect on the
// next Load or Reload.
func (o *Orchestrator) SetFilter(appID int64, page, size int) {
	o.mu.Lock()
	o.filter.ApplicationID = appID
	if page >= 0 {
		o.filter.Page = page
	}
	if size > 0 {
		o.filter.Size = size
	}
	o.mu.Unlock()
}

// SetCreatedDate restricts history to one day. A zero time clears it.
func (o *Orchestrator) SetCreatedDate(day time.Time) {
	o.mu.Lock()
	o.filter.CreatedDate = day
	o.filter.Page = 0
	o.mu.Unlock()
}

// Load fetches applications and the current history page, then the status
// of every application with bounded concurrency. Status failures are kept
// per application and do not fail the load.
func (o *Orchestrator) Load(ctx context.Context) error {
	ctx, log := o.operation(ctx, "load")
	if err := o.reload(ctx); err != nil {
		log.Warn("load lists", zap.Error(err))
		return err
	}

	o.mu.Lock()
	ids := make([]int64, 0, len(o.apps))
	for _, a := range o.apps {
		ids = append(ids, a.ID)
		o.statusLoading[a.ID] = true
	}
	o.mu.Unlock()
	o.changed()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			o.fetchStatus(gctx, log, id)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load statuses: %w", err)
	}
	log.Debug("loaded", zap.Int("applications", len(ids)))
	return nil
}

// Reload refetches the application list and the history page without
// touching statuses.
func (o *Orchestrator) Reload(ctx context.Context) error {
	ctx, log := o.operation(ctx, "reload")
	if err := o.reload(ctx); err != nil {
		log.Warn("reload", zap.Error(err))
		return err
	}
	return nil
}

// RefreshStatus refetches the status of one application.
func (o *Orchestrator) RefreshStatus(ctx context.Context, appID int64) {
	ctx, log := o.operation(ctx, "status", zap.Int64("application_id", appID))
	o.fetchStatus(ctx, log, appID)
}

func (o *Orchestrator) reload(ctx context.Context) error {
	apps, err := o.backend.ListApplications(ctx)
	if err != nil {
		return fmt.Errorf("list applications: %w", err)
	}

	o.mu.RLock()
	f := o.filter
	o.mu.RUnlock()
	page, err := o.backend.SearchDeployments(ctx, api.SearchParams{
		ApplicationID: f.ApplicationID,
		CreatedDate:   f.CreatedDate,
		Page:          f.Page,
		Size:          f.Size,
	})
	if err != nil {
		o.mu.Lock()
		o.apps = apps
		o.mu.Unlock()
		o.changed()
		return fmt.Errorf("search deployments: %w", err)
	}

	o.mu.Lock()
	o.apps = apps
	o.deployments = page.Content
	o.totalElements = page.TotalElements
	o.totalPages = page.TotalPages
	o.mu.Unlock()
	o.changed()
	return nil
}

// fetchStatus issues exactly one status request for appID.
func (o *Orchestrator) fetchStatus(ctx context.Context, log *zap.Logger, appID int64) {
	o.mu.Lock()
	o.statusLoading[appID] = true
	o.mu.Unlock()

	st, err := o.backend.DeploymentStatus(ctx, appID)

	o.mu.Lock()
	delete(o.statusLoading, appID)
	if err != nil {
		o.statusFailed[appID] = true
	} else {
		o.statuses[appID] = st
		delete(o.statusFailed, appID)
	}
	o.mu.Unlock()
	o.changed()
	if err != nil {
		log.Warn("status fetch failed", zap.Int64("application_id", appID), zap.Error(err))
	}
}

// afterMutation reconciles the caches once a mutating action succeeded:
// lists are reloaded, then the affected application's status is fetched once.
func (o *Orchestrator) afterMutation(ctx context.Context, log *zap.Logger, appID int64) {
	if err := o.reload(ctx); err != nil {
		log.Warn("reload after mutation", zap.Error(err))
	}
	o.fetchStatus(ctx, log, appID)
}

func (o *Orchestrator) status(appID int64) (api.DeploymentStatus, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st, ok := o.statuses[appID]
	return st, ok
}

func (o *Orchestrator) forgetStatus(appID int64) {
	o.mu.Lock()
	delete(o.statuses, appID)
	delete(o.statusLoading, appID)
	delete(o.statusFailed, appID)
	o.mu.Unlock()
}

func (o *Orchestrator) application(id int64) (api.Application, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, a := range o.apps {
		if a.ID == id {
			return a, true
		}
	}
	return api.Application{}, false
}

func (o *Orchestrator) deployment(id int64) (api.Deployment, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, d := range o.deployments {
		if d.ID == id {
			return d, true
		}
	}
	return api.Deployment{}, false
}

func (o *Orchestrator) replaceDeployment(d api.Deployment) {
	o.mu.Lock()
	for i := range o.deployments {
		if o.deployments[i].ID == d.ID {
			o.deployments[i] = d
			break
		}
	}
	o.mu.Unlock()
	o.changed()
}

// Status labels shown next to an application.
const (
	LabelLoading     = "Loading..."
	LabelStopped     = "Stopped"
	LabelUnavailable = "Unavailable"
)

// StatusLabel renders the cached status of an application.
func (o *Orchestrator) StatusLabel(appID int64) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.statusLoading[appID] {
		return LabelLoading
	}
	st, ok := o.statuses[appID]
	if !ok {
		if o.statusFailed[appID] {
			return LabelUnavailable
		}
		return LabelLoading
	}
	return statusText(st)
}

func statusText(st api.DeploymentStatus) string {
	if !st.IsRunning {
		return LabelStopped
	}
	switch {
	case st.PID.Set && st.Port.Set:
		return fmt.Sprintf("Running (PID: %d, Port: %d)", st.PID.Value, st.Port.Value)
	case st.PID.Set:
		return fmt.Sprintf("Running (PID: %d)", st.PID.Value)
	default:
		return "Running"
	}
}

// Snapshot is a read-only copy of the caches and lock states.
type Snapshot struct {
	Applications  []api.Application
	Deployments   []api.Deployment
	TotalElements int64
	TotalPages    int
	Filter        Filter
	Statuses      map[int64]api.DeploymentStatus
	Locks         []LockEntry
}

// Snapshot copies the current caches.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	s := Snapshot{
		Applications:  append([]api.Application(nil), o.apps...),
		Deployments:   append([]api.Deployment(nil), o.deployments...),
		TotalElements: o.totalElements,
		TotalPages:    o.totalPages,
		Filter:        o.filter,
		Statuses:      make(map[int64]api.DeploymentStatus, len(o.statuses)),
	}
	for id, st := range o.statuses {
		s.Statuses[id] = st
	}
	o.mu.RUnlock()
	s.Locks = o.locks.Entries()
	return s
}
