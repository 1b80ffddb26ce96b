package gui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/lazyops/lazyops/pkg/api"
	"github.com/lazyops/lazyops/pkg/orchestrator"
	"github.com/lazyops/lazyops/pkg/session"
	"go.uber.org/zap"
)

const (
	viewHeader  = "header"
	viewMain    = "main"
	viewStatus  = "status"
	viewLog     = "log"
	viewHelp    = "help"
	logBufLive  = 3000
	statusLines = 12
	toastTTL    = 6 * time.Second
)

// Screen is the list shown in the left panel, or a full-screen overlay.
type Screen int

const (
	ScreenApps Screen = iota
	ScreenDeployments
	ScreenAudits
	ScreenHelp
	ScreenLogin
)

func (s Screen) String() string {
	switch s {
	case ScreenApps:
		return "apps"
	case ScreenDeployments:
		return "deployments"
	case ScreenAudits:
		return "audits"
	case ScreenHelp:
		return "help"
	case ScreenLogin:
		return "login"
	default:
		return "unknown"
	}
}

// next cycles the list screens with Tab.
func (s Screen) next() Screen {
	switch s {
	case ScreenApps:
		return ScreenDeployments
	case ScreenDeployments:
		return ScreenAudits
	default:
		return ScreenApps
	}
}

// Backend is everything the console calls on the server.
type Backend interface {
	orchestrator.Backend
	Login(ctx context.Context, email, password string) (api.LoginResponse, error)
	SearchAudits(ctx context.Context, page, size int) (api.Page[api.Audit], error)
}

// Options configures New.
type Options struct {
	Version  string
	APIURL   string
	Store    *session.Store
	Logger   *zap.Logger
	PageSize int
}

// GUI holds TUI state.
type GUI struct {
	g        *gocui.Gui
	version  string
	apiURL   string
	store    *session.Store
	logger   *zap.Logger
	backend  Backend
	orch     *orchestrator.Orchestrator
	gate     *modalGate
	spinner  *Spinner
	pageSize int

	ctx    context.Context
	cancel context.CancelFunc

	// Fields below are owned by the UI goroutine.
	screen             Screen
	prevScreen         Screen
	selectedApp        int
	selectedDeployment int
	selectedAudit      int
	audits             api.Page[api.Audit]
	auditPage          int
	login              *loginForm
	maxX               int
	maxY               int

	logLines []string
	logMu    sync.Mutex
	toast    string
	toastAt  time.Time
	toastMu  sync.Mutex
}

// New creates the console. Call Attach with a backend before Run.
func New(opts Options) (*GUI, error) {
	ver := opts.Version
	if ver == "" {
		ver = "dev"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	gui := &GUI{
		g:        g,
		version:  ver,
		apiURL:   opts.APIURL,
		store:    opts.Store,
		logger:   logger.Named("gui"),
		pageSize: pageSize,
		ctx:      ctx,
		cancel:   cancel,
		screen:   ScreenApps,
		logLines: make([]string, 0, logBufLive),
		maxX:     80,
		maxY:     24,
	}
	gui.gate = newModalGate(gui.post)
	gui.spinner = NewSpinner(gui.redraw)

	g.SetManagerFunc(gui.layout)
	if err := gui.keybindings(g); err != nil {
		cancel()
		g.Close()
		return nil, err
	}
	return gui, nil
}

// Attach connects the console to a backend. The console itself answers the
// orchestrator's confirmation and input gates.
func (gui *GUI) Attach(backend Backend, opts ...orchestrator.Option) {
	gui.backend = backend
	opts = append(opts,
		orchestrator.WithOnChange(gui.redraw),
		orchestrator.WithPageSize(gui.pageSize),
	)
	gui.orch = orchestrator.New(backend, gui.gate, opts...)
}

// Close releases the terminal of a console that will not Run.
func (gui *GUI) Close() {
	gui.cancel()
	gui.g.Close()
}

// Quit stops the main loop. Safe from any goroutine.
func (gui *GUI) Quit() {
	gui.g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
}

// post runs fn on the UI goroutine.
func (gui *GUI) post(fn func()) {
	gui.g.Update(func(*gocui.Gui) error {
		fn()
		return nil
	})
}

func (gui *GUI) redraw() {
	gui.g.Update(func(*gocui.Gui) error { return nil })
}

// Run blocks in the main loop until the operator quits.
func (gui *GUI) Run() error {
	defer gui.g.Close()
	defer gui.cancel()
	if gui.orch == nil {
		return errors.New("gui: no backend attached")
	}

	if gui.store != nil && gui.store.Valid(time.Now()) {
		gui.reload()
	} else {
		gui.showLogin("Sign in to " + gui.apiURL)
	}

	err := gui.g.MainLoop()
	if errors.Is(err, gocui.ErrQuit) {
		return nil
	}
	return err
}

func (gui *GUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	if maxX < 20 {
		maxX = 20
	}
	if maxY < 10 {
		maxY = 10
	}
	gui.maxX = maxX
	gui.maxY = maxY

	snap := gui.orch.Snapshot()
	gui.clampSelection(snap)

	if v, err := g.SetView(viewHeader, 0, 0, maxX-1, 2); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = true
		v.Title = " LazyOps "
		v.FgColor = gocui.ColorCyan
	}
	header, _ := g.View(viewHeader)
	header.Clear()
	fmt.Fprintf(header, " %s %s | %s | %s\n",
		bold("LazyOps"), dim(gui.version), gui.breadcrumb(snap), gui.indicator())

	leftW := maxX * 5 / 10
	if leftW < 30 {
		leftW = 30
	}
	if v, err := g.SetView(viewMain, 0, 3, leftW-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = true
	}

	statusH := statusLines + 2
	if statusH > maxY-6 {
		statusH = maxY - 6
	}
	statusY := 3 + statusH
	if v, err := g.SetView(viewStatus, leftW, 3, maxX-1, statusY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = true
		v.Title = " Details "
		v.Wrap = true
	}
	if v, err := g.SetView(viewLog, leftW, statusY, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Frame = true
		v.Title = " Activity "
		v.Autoscroll = true
		v.Wrap = true
	}

	gui.renderLeftPanel(g, snap)
	gui.renderDetails(g, snap)
	gui.renderLog(g)

	if m := gui.gate.open(); m != nil {
		_ = g.DeleteView(viewHelp)
		_ = g.DeleteView(viewLogin)
		g.Cursor = m.kind == modalText
		return gui.renderModal(g, m)
	}
	_ = g.DeleteView(viewModal)

	if gui.screen == ScreenHelp {
		g.Cursor = false
		return gui.renderHelpOverlay(g)
	}
	_ = g.DeleteView(viewHelp)

	if gui.screen == ScreenLogin {
		g.Cursor = true
		return gui.renderLogin(g)
	}
	_ = g.DeleteView(viewLogin)

	g.Cursor = false
	_, err := g.SetCurrentView(viewMain)
	return err
}

// clampSelection keeps row indexes inside the loaded lists.
func (gui *GUI) clampSelection(snap orchestrator.Snapshot) {
	gui.selectedApp = clamp(gui.selectedApp, len(snap.Applications))
	gui.selectedDeployment = clamp(gui.selectedDeployment, len(snap.Deployments))
	gui.selectedAudit = clamp(gui.selectedAudit, len(gui.audits.Content))
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (gui *GUI) indicator() string {
	gui.toastMu.Lock()
	toast, at := gui.toast, gui.toastAt
	gui.toastMu.Unlock()
	if toast != "" && time.Since(at) < toastTTL {
		return red(iconToast + " " + toast)
	}
	if s := gui.spinner.String(); s != "" {
		return s
	}
	return green(iconSuccess) + " Ready"
}

func (gui *GUI) breadcrumb(snap orchestrator.Snapshot) string {
	switch gui.screen {
	case ScreenApps:
		return cyan("Applications")
	case ScreenDeployments:
		path := cyan("Deployments")
		if name := appName(snap.Applications, snap.Filter.ApplicationID); name != "" {
			path += dim(" > ") + name
		}
		if !snap.Filter.CreatedDate.IsZero() {
			path += dim(" > ") + snap.Filter.CreatedDate.Format("2006-01-02")
		}
		return path
	case ScreenAudits:
		return cyan("Audit log")
	case ScreenLogin:
		return yellow("Sign in")
	case ScreenHelp:
		return dim("Help")
	}
	return ""
}

func appName(apps []api.Application, id int64) string {
	if id == 0 {
		return ""
	}
	for _, a := range apps {
		if a.ID == id {
			return a.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}

func (gui *GUI) renderLeftPanel(g *gocui.Gui, snap orchestrator.Snapshot) {
	v, err := g.View(viewMain)
	if err != nil || v == nil {
		return
	}
	v.Clear()
	switch gui.screen {
	case ScreenDeployments:
		gui.renderDeployments(v, snap)
	case ScreenAudits:
		gui.renderAudits(v)
	default:
		gui.renderApps(v, snap)
	}
}

func (gui *GUI) renderApps(v *gocui.View, snap orchestrator.Snapshot) {
	v.Title = fmt.Sprintf(" Applications (%d) ", len(snap.Applications))
	if len(snap.Applications) == 0 {
		fmt.Fprintln(v, "")
		fmt.Fprintln(v, " No applications loaded.")
		fmt.Fprintln(v, " Press r to reload.")
		return
	}
	for i, a := range snap.Applications {
		busy := gui.orch.IsAnyActionLoading(orchestrator.AppKey(a.ID))
		fmt.Fprintln(v, selectPrefix(i == gui.selectedApp)+appRow(a, gui.orch.StatusLabel(a.ID), busy))
	}
	fmt.Fprintln(v, "")
	fmt.Fprintln(v, dim(" d deploy · k kill · x delete · Enter history"))
}

func (gui *GUI) renderDeployments(v *gocui.View, snap orchestrator.Snapshot) {
	v.Title = fmt.Sprintf(" Deployments %s ", pageLabel(snap.Filter.Page, snap.TotalPages, snap.TotalElements))
	if len(snap.Deployments) == 0 {
		fmt.Fprintln(v, "")
		fmt.Fprintln(v, " No deployments on this page.")
		return
	}
	for i, d := range snap.Deployments {
		busy := gui.orch.IsAnyActionLoading(orchestrator.DeploymentKey(d.ID))
		fmt.Fprintln(v, selectPrefix(i == gui.selectedDeployment)+deploymentRow(d, appName(snap.Applications, d.ApplicationID), busy))
	}
	fmt.Fprintln(v, "")
	fmt.Fprintln(v, dim(" R rollback · e notes · x delete · [ ] page · f all apps · t today"))
}

func (gui *GUI) renderAudits(v *gocui.View) {
	v.Title = fmt.Sprintf(" Audit log %s ", pageLabel(gui.auditPage, gui.audits.TotalPages, gui.audits.TotalElements))
	if len(gui.audits.Content) == 0 {
		fmt.Fprintln(v, "")
		fmt.Fprintln(v, " No audit entries loaded.")
		return
	}
	for i, a := range gui.audits.Content {
		fmt.Fprintln(v, selectPrefix(i == gui.selectedAudit)+auditRow(a))
	}
}

func selectPrefix(selected bool) string {
	if selected {
		return cyan(iconArrow) + " "
	}
	return "  "
}

func pageLabel(page, pages int, total int64) string {
	if pages <= 0 {
		return fmt.Sprintf("(%d)", total)
	}
	return fmt.Sprintf("(page %d/%d, %d total)", page+1, pages, total)
}

func appRow(a api.Application, label string, busy bool) string {
	row := column(a.Name, 20) + " " + statusBadge(label)
	if busy {
		row += " " + iconLock
	}
	return row
}

func deploymentRow(d api.Deployment, app string, busy bool) string {
	version := d.Version
	if version == "" {
		version = "#" + fmt.Sprint(d.ID)
	}
	row := column(version, 16) + " " + column(app, 14) + " " + column(d.Branch, 18) + " "
	if d.IsRunning() {
		row += green(column(d.Status, 10))
	} else {
		row += dim(column(d.Status, 10))
	}
	if busy {
		row += " " + iconLock
	}
	return row
}

func auditRow(a api.Audit) string {
	return column(formatDate(a.Timestamp), 16) + " " + column(a.User, 18) + " " + a.Action
}

func (gui *GUI) renderDetails(g *gocui.Gui, snap orchestrator.Snapshot) {
	v, err := g.View(viewStatus)
	if err != nil || v == nil {
		return
	}
	v.Clear()
	switch gui.screen {
	case ScreenDeployments:
		if d, ok := gui.selectedDeploymentRow(snap); ok {
			fmt.Fprint(v, deploymentDetails(d, appName(snap.Applications, d.ApplicationID), locksFor(snap.Locks, orchestrator.DeploymentKey(d.ID))))
		}
	case ScreenAudits:
		if gui.selectedAudit < len(gui.audits.Content) {
			fmt.Fprint(v, auditDetails(gui.audits.Content[gui.selectedAudit]))
		}
	default:
		if a, ok := gui.selectedApplication(snap); ok {
			fmt.Fprint(v, appDetails(a, gui.orch.StatusLabel(a.ID), locksFor(snap.Locks, orchestrator.AppKey(a.ID))))
		}
	}
}

func (gui *GUI) selectedApplication(snap orchestrator.Snapshot) (api.Application, bool) {
	if gui.selectedApp < 0 || gui.selectedApp >= len(snap.Applications) {
		return api.Application{}, false
	}
	return snap.Applications[gui.selectedApp], true
}

func (gui *GUI) selectedDeploymentRow(snap orchestrator.Snapshot) (api.Deployment, bool) {
	if gui.selectedDeployment < 0 || gui.selectedDeployment >= len(snap.Deployments) {
		return api.Deployment{}, false
	}
	return snap.Deployments[gui.selectedDeployment], true
}

// locksFor lists "kind (state)" for every busy slot on key.
func locksFor(entries []orchestrator.LockEntry, key orchestrator.Key) []string {
	var out []string
	for _, e := range entries {
		if e.Key == key {
			out = append(out, fmt.Sprintf("%s (%s)", e.Kind, e.State))
		}
	}
	return out
}

func field(b *strings.Builder, name, value string) {
	if value == "" {
		value = "-"
	}
	fmt.Fprintf(b, " %s %s\n", dim(padRight(name+":", 10)), value)
}

func appDetails(a api.Application, label string, locks []string) string {
	var b strings.Builder
	field(&b, "Name", bold(a.Name))
	field(&b, "ID", fmt.Sprint(a.ID))
	field(&b, "Status", statusBadge(label))
	if a.Port > 0 {
		field(&b, "Port", fmt.Sprint(a.Port))
	}
	field(&b, "Git", a.GitProjectHTTPSURL)
	field(&b, "Folder", a.FolderRoot)
	field(&b, "Created", formatDate(a.CreatedAt))
	if a.Description != "" {
		field(&b, "About", a.Description)
	}
	if len(locks) > 0 {
		field(&b, "Busy", yellow(strings.Join(locks, ", ")))
	}
	return b.String()
}

func deploymentDetails(d api.Deployment, app string, locks []string) string {
	var b strings.Builder
	field(&b, "Version", bold(d.Version))
	field(&b, "App", app)
	field(&b, "Branch", d.Branch)
	field(&b, "Type", deployTypeBadge(api.DeployType(d.Type)))
	field(&b, "Status", d.Status)
	if d.PID.Set {
		field(&b, "PID", fmt.Sprint(d.PID.Value))
	}
	field(&b, "Created", formatDate(d.CreatedAt))
	if d.TimeTaken != nil {
		field(&b, "Took", formatDuration(time.Duration(*d.TimeTaken)*time.Second))
	}
	field(&b, "Logs", d.LogsPath)
	field(&b, "Notes", d.Notes)
	if len(locks) > 0 {
		field(&b, "Busy", yellow(strings.Join(locks, ", ")))
	}
	return b.String()
}

func auditDetails(a api.Audit) string {
	var b strings.Builder
	field(&b, "Action", bold(a.Action))
	field(&b, "User", a.User)
	field(&b, "When", formatDate(a.Timestamp))
	keys := make([]string, 0, len(a.Details))
	for k := range a.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(&b, k, fmt.Sprint(a.Details[k]))
	}
	return b.String()
}

func (gui *GUI) renderLog(g *gocui.Gui) {
	v, err := g.View(viewLog)
	if err != nil || v == nil {
		return
	}
	v.Clear()
	gui.logMu.Lock()
	lines := append([]string(nil), gui.logLines...)
	gui.logMu.Unlock()
	if len(lines) == 0 {
		fmt.Fprintln(v, " Action results will appear here.")
		return
	}
	start := 0
	if len(lines) > gui.maxY-6 {
		start = len(lines) - (gui.maxY - 6)
	}
	for _, l := range lines[start:] {
		fmt.Fprintln(v, l)
	}
}

func (gui *GUI) renderHelpOverlay(g *gocui.Gui) error {
	x0, y0, x1, y1 := modalBox(g, 62, 30)
	v, err := g.SetView(viewHelp, x0, y0, x1, y1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Frame = true
	v.Title = " LazyOps Help "
	v.Wrap = true
	v.Clear()
	fmt.Fprint(v, helpText)
	_, err = g.SetCurrentView(viewHelp)
	return err
}

const helpText = `
 KEYBOARD SHORTCUTS
 ══════════════════════════════════════════════

 Navigation
 ──────────────────────────────────────────────
   ↑/↓         Move selection
   Tab         Applications / Deployments / Audit log
   Enter       Show history of the selected application
   q / Ctrl+C  Quit

 Applications
 ──────────────────────────────────────────────
   d           Deploy a branch
   k           Kill the running process
   s           Refresh the selected status
   n           Register a new application
   e           Edit the application
   x           Delete the application

 Deployments
 ──────────────────────────────────────────────
   R           Roll back to the selected deployment
   k           Kill the application's running process
   e           Edit notes
   x           Delete the deployment
   [ / ]       Previous / next page
   f           Show all applications
   t           Toggle today only

 General
 ──────────────────────────────────────────────
   r           Reload lists and statuses
   c           Clear the activity panel
   L           Sign out
   ?  / Esc    Close this help
`

func (gui *GUI) appendLog(lines []string) {
	gui.logMu.Lock()
	defer gui.logMu.Unlock()
	for _, line := range lines {
		gui.logLines = append(gui.logLines, timestampedLine(sanitizeLogLine(line)))
	}
	if len(gui.logLines) > logBufLive {
		gui.logLines = gui.logLines[len(gui.logLines)-logBufLive:]
	}
}

func (gui *GUI) logSuccess(msg string) { gui.appendLog([]string{statusLine("success", msg)}) }
func (gui *GUI) logError(msg string)   { gui.appendLog([]string{statusLine("error", msg)}) }
func (gui *GUI) logInfo(msg string)    { gui.appendLog([]string{statusLine("info", msg)}) }
