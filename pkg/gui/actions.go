package gui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lazyops/lazyops/pkg/api"
	"github.com/lazyops/lazyops/pkg/orchestrator"
	"go.uber.org/zap"
)

// runAction runs fn off the UI goroutine with a spinner and logs how it
// settled. Error toasts come from the session interceptor, not from here.
func (gui *GUI) runAction(name string, fn func(context.Context) error) {
	id := gui.spinner.Start(name)
	start := time.Now()
	gui.logInfo("Running: " + name)

	go func() {
		defer func() {
			gui.spinner.Done(id)
			gui.redraw()
		}()
		err := fn(gui.ctx)
		status, msg := outcomeLine(name, err, time.Since(start))
		gui.appendLog([]string{statusLine(status, msg)})
		if err != nil && !errors.Is(err, orchestrator.ErrCancelled) {
			gui.logger.Debug("action settled with error", zap.String("action", name), zap.Error(err))
		}
	}()
}

// outcomeLine maps how an action settled to a log severity and message.
func outcomeLine(name string, err error, took time.Duration) (string, string) {
	switch {
	case err == nil:
		return "success", fmt.Sprintf("%s completed in %s", name, formatDuration(took))
	case errors.Is(err, orchestrator.ErrCancelled):
		return "info", name + " cancelled"
	case errors.Is(err, orchestrator.ErrBusy):
		return "warning", name + ": another action is already running on this item"
	case errors.Is(err, orchestrator.ErrNoKnownPID):
		return "info", name + ": no known process id, press r to refresh status"
	case errors.Is(err, orchestrator.ErrNotFound):
		return "warning", name + ": item is no longer loaded, press r to reload"
	default:
		return "error", fmt.Sprintf("%s failed in %s: %s", name, formatDuration(took), err)
	}
}

func (gui *GUI) reload() {
	gui.runAction("Reload", gui.orch.Load)
}

func (gui *GUI) refreshSelected() {
	app, ok := gui.selectedApplication(gui.orch.Snapshot())
	if !ok {
		return
	}
	gui.runAction("Status "+app.Name, func(ctx context.Context) error {
		gui.orch.RefreshStatus(ctx, app.ID)
		return nil
	})
}

func (gui *GUI) execDeploy() {
	app, ok := gui.selectedApplication(gui.orch.Snapshot())
	if !ok {
		return
	}
	gui.runAction("Deploy "+app.Name, func(ctx context.Context) error {
		return gui.orch.Deploy(ctx, app.ID, app.GitProjectHTTPSURL)
	})
}

// killTarget resolves the application whose process k should stop.
func (gui *GUI) killTarget(snap orchestrator.Snapshot) (int64, string, bool) {
	switch gui.screen {
	case ScreenApps:
		if a, ok := gui.selectedApplication(snap); ok {
			return a.ID, a.Name, true
		}
	case ScreenDeployments:
		if d, ok := gui.selectedDeploymentRow(snap); ok {
			return d.ApplicationID, appName(snap.Applications, d.ApplicationID), true
		}
	}
	return 0, "", false
}

func (gui *GUI) execKill() {
	appID, name, ok := gui.killTarget(gui.orch.Snapshot())
	if !ok {
		return
	}
	gui.runAction("Kill "+name, func(ctx context.Context) error {
		return gui.orch.Kill(ctx, appID)
	})
}

func (gui *GUI) execRollback() {
	snap := gui.orch.Snapshot()
	d, ok := gui.selectedDeploymentRow(snap)
	if !ok {
		return
	}
	gui.runAction("Rollback "+appName(snap.Applications, d.ApplicationID)+" to "+deploymentName(d), func(ctx context.Context) error {
		return gui.orch.Rollback(ctx, d)
	})
}

func deploymentName(d api.Deployment) string {
	if d.Version != "" {
		return d.Version
	}
	return fmt.Sprintf("#%d", d.ID)
}

func (gui *GUI) execDelete() {
	snap := gui.orch.Snapshot()
	switch gui.screen {
	case ScreenApps:
		if a, ok := gui.selectedApplication(snap); ok {
			gui.runAction("Delete "+a.Name, func(ctx context.Context) error {
				return gui.orch.DeleteApplication(ctx, a.ID)
			})
		}
	case ScreenDeployments:
		if d, ok := gui.selectedDeploymentRow(snap); ok {
			gui.runAction("Delete deployment "+deploymentName(d), func(ctx context.Context) error {
				return gui.orch.DeleteDeployment(ctx, d.ID)
			})
		}
	}
}

func (gui *GUI) execCreateApplication() {
	gui.runAction("New application", gui.orch.CreateApplication)
}

func (gui *GUI) execEditApplication() {
	a, ok := gui.selectedApplication(gui.orch.Snapshot())
	if !ok {
		return
	}
	gui.runAction("Edit "+a.Name, func(ctx context.Context) error {
		return gui.orch.EditApplication(ctx, a.ID)
	})
}

func (gui *GUI) execEditNotes() {
	d, ok := gui.selectedDeploymentRow(gui.orch.Snapshot())
	if !ok {
		return
	}
	gui.runAction("Notes for "+deploymentName(d), func(ctx context.Context) error {
		return gui.orch.EditNotes(ctx, d.ID)
	})
}

// filterHistory shows one application's deployments, or all with id 0.
func (gui *GUI) filterHistory(appID int64) {
	gui.orch.SetFilter(appID, 0, 0)
	gui.selectedDeployment = 0
	gui.runAction("Load history", gui.orch.Reload)
}

func (gui *GUI) toggleToday() {
	day := time.Time{}
	if gui.orch.Snapshot().Filter.CreatedDate.IsZero() {
		day = time.Now()
	}
	gui.orch.SetCreatedDate(day)
	gui.selectedDeployment = 0
	gui.runAction("Load history", gui.orch.Reload)
}

func (gui *GUI) turnPage(delta int) {
	switch gui.screen {
	case ScreenDeployments:
		snap := gui.orch.Snapshot()
		page, ok := nextPage(snap.Filter.Page, snap.TotalPages, delta)
		if !ok {
			return
		}
		gui.orch.SetFilter(snap.Filter.ApplicationID, page, 0)
		gui.selectedDeployment = 0
		gui.runAction(fmt.Sprintf("Load history page %d", page+1), gui.orch.Reload)
	case ScreenAudits:
		if page, ok := nextPage(gui.auditPage, gui.audits.TotalPages, delta); ok {
			gui.loadAudits(page)
		}
	}
}

// nextPage moves within [0, pages). Unknown totals allow moving forward.
func nextPage(page, pages, delta int) (int, bool) {
	next := page + delta
	if next < 0 || next == page {
		return page, false
	}
	if pages > 0 && next >= pages {
		return page, false
	}
	return next, true
}

func (gui *GUI) loadAudits(page int) {
	gui.runAction(fmt.Sprintf("Load audit page %d", page+1), func(ctx context.Context) error {
		res, err := gui.backend.SearchAudits(ctx, page, gui.pageSize)
		if err != nil {
			return err
		}
		gui.post(func() {
			gui.audits = res
			gui.auditPage = page
			gui.selectedAudit = 0
		})
		return nil
	})
}
