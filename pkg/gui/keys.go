package gui

import (
	"github.com/jroimartin/gocui"
)

// keybindings registers every key globally; handlers dispatch on whichever
// modal or screen currently has focus.
func (gui *GUI) keybindings(g *gocui.Gui) error {
	keys := []struct {
		key     interface{}
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, func(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }},
		{gocui.KeyArrowUp, gui.keyUp},
		{gocui.KeyArrowDown, gui.keyDown},
		{gocui.KeyArrowLeft, gui.keyLeft},
		{gocui.KeyArrowRight, gui.keyRight},
		{gocui.KeyEnter, gui.keyEnter},
		{gocui.KeyEsc, gui.keyBack},
		{gocui.KeyTab, gui.keyTab},
		{gocui.KeySpace, func(*gocui.Gui, *gocui.View) error { return gui.keyRune(' ') }},
		{gocui.KeyBackspace, gui.keyBackspace},
		{gocui.KeyBackspace2, gui.keyBackspace},
		{gocui.KeyDelete, gui.withInput(func(in *inputState) { in.del() })},
		{gocui.KeyHome, gui.withInput(func(in *inputState) { in.home() })},
		{gocui.KeyEnd, gui.withInput(func(in *inputState) { in.end() })},
		{gocui.KeyCtrlU, gui.withInput(func(in *inputState) { in.clear() })},
	}
	for _, k := range keys {
		if err := g.SetKeybinding("", k.key, gocui.ModNone, k.handler); err != nil {
			return err
		}
	}
	for r := rune(33); r < 127; r++ {
		r := r
		if err := g.SetKeybinding("", r, gocui.ModNone, func(*gocui.Gui, *gocui.View) error {
			return gui.keyRune(r)
		}); err != nil {
			return err
		}
	}
	return nil
}

// focusedInput is the text field that receives typing, if any.
func (gui *GUI) focusedInput() *inputState {
	if m := gui.gate.open(); m != nil {
		if m.kind == modalText {
			return m.input
		}
		return nil
	}
	if gui.screen == ScreenLogin && gui.login != nil {
		return gui.login.focused()
	}
	return nil
}

func (gui *GUI) withInput(fn func(*inputState)) func(*gocui.Gui, *gocui.View) error {
	return func(*gocui.Gui, *gocui.View) error {
		if in := gui.focusedInput(); in != nil {
			fn(in)
		}
		return nil
	}
}

// editInput receives runes the key table does not bind, such as non-ASCII
// characters typed into an editable view.
func (gui *GUI) editInput(v *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) {
	if ch == 0 {
		return
	}
	if in := gui.focusedInput(); in != nil {
		in.insert(ch)
	}
}

func (gui *GUI) keyRune(r rune) error {
	if in := gui.focusedInput(); in != nil {
		in.insert(r)
		return nil
	}
	if m := gui.gate.open(); m != nil {
		gui.modalRune(m, r)
		return nil
	}
	if gui.screen == ScreenLogin {
		return nil
	}
	if gui.screen == ScreenHelp {
		if r == '?' || r == 'q' {
			gui.screen = gui.prevScreen
		}
		return nil
	}

	switch r {
	case 'q':
		return gocui.ErrQuit
	case '?':
		gui.prevScreen = gui.screen
		gui.screen = ScreenHelp
	case 'r':
		gui.reload()
	case 's':
		if gui.screen == ScreenApps {
			gui.refreshSelected()
		}
	case 'c':
		gui.logMu.Lock()
		gui.logLines = make([]string, 0, logBufLive)
		gui.logMu.Unlock()
	case 'L':
		gui.signOut()
	case 'd':
		if gui.screen == ScreenApps {
			gui.execDeploy()
		}
	case 'k':
		gui.execKill()
	case 'R':
		if gui.screen == ScreenDeployments {
			gui.execRollback()
		}
	case 'x':
		gui.execDelete()
	case 'e':
		switch gui.screen {
		case ScreenApps:
			gui.execEditApplication()
		case ScreenDeployments:
			gui.execEditNotes()
		}
	case 'n':
		if gui.screen == ScreenApps {
			gui.execCreateApplication()
		}
	case '[':
		gui.turnPage(-1)
	case ']':
		gui.turnPage(1)
	case 'f':
		if gui.screen == ScreenDeployments {
			gui.filterHistory(0)
		}
	case 't':
		if gui.screen == ScreenDeployments {
			gui.toggleToday()
		}
	}
	return nil
}

func (gui *GUI) modalRune(m *modal, r rune) {
	switch m.kind {
	case modalConfirm:
		switch r {
		case 'y', 'Y':
			gui.gate.resolve(modalResult{ok: true})
		case 'n', 'N', 'q':
			gui.gate.resolve(modalResult{})
		}
	case modalBranch:
		switch r {
		case 't':
			m.branch.toggleType()
		case 'j':
			m.branch.move(1)
		case 'k':
			m.branch.move(-1)
		case 'q':
			gui.gate.resolve(modalResult{})
		}
	}
}

func (gui *GUI) keyUp(*gocui.Gui, *gocui.View) error {
	if m := gui.gate.open(); m != nil {
		if m.kind == modalBranch {
			m.branch.move(-1)
		}
		return nil
	}
	switch gui.screen {
	case ScreenApps:
		if gui.selectedApp > 0 {
			gui.selectedApp--
		}
	case ScreenDeployments:
		if gui.selectedDeployment > 0 {
			gui.selectedDeployment--
		}
	case ScreenAudits:
		if gui.selectedAudit > 0 {
			gui.selectedAudit--
		}
	case ScreenLogin:
		gui.login.switchFocus()
	}
	return nil
}

// keyDown moves past the end freely; layout clamps to the loaded rows.
func (gui *GUI) keyDown(*gocui.Gui, *gocui.View) error {
	if m := gui.gate.open(); m != nil {
		if m.kind == modalBranch {
			m.branch.move(1)
		}
		return nil
	}
	switch gui.screen {
	case ScreenApps:
		gui.selectedApp++
	case ScreenDeployments:
		gui.selectedDeployment++
	case ScreenAudits:
		gui.selectedAudit++
	case ScreenLogin:
		gui.login.switchFocus()
	}
	return nil
}

func (gui *GUI) keyLeft(*gocui.Gui, *gocui.View) error {
	if in := gui.focusedInput(); in != nil {
		in.left()
		return nil
	}
	if m := gui.gate.open(); m != nil && m.kind == modalConfirm {
		m.confirm.left()
	}
	return nil
}

func (gui *GUI) keyRight(*gocui.Gui, *gocui.View) error {
	if in := gui.focusedInput(); in != nil {
		in.right()
		return nil
	}
	if m := gui.gate.open(); m != nil && m.kind == modalConfirm {
		m.confirm.right()
	}
	return nil
}

func (gui *GUI) keyBackspace(*gocui.Gui, *gocui.View) error {
	if in := gui.focusedInput(); in != nil {
		in.backspace()
	}
	return nil
}

func (gui *GUI) keyEnter(*gocui.Gui, *gocui.View) error {
	if m := gui.gate.open(); m != nil {
		switch m.kind {
		case modalConfirm:
			gui.gate.resolve(modalResult{ok: m.confirm.yes()})
		case modalBranch:
			if choice, ok := m.branch.choice(); ok {
				gui.gate.resolve(modalResult{ok: true, choice: choice})
			}
		case modalText:
			gui.gate.resolve(modalResult{ok: true, text: m.input.Text})
		}
		return nil
	}
	switch gui.screen {
	case ScreenLogin:
		gui.submitLogin()
	case ScreenHelp:
		gui.screen = gui.prevScreen
	case ScreenApps:
		snap := gui.orch.Snapshot()
		if a, ok := gui.selectedApplication(snap); ok {
			gui.filterHistory(a.ID)
			gui.screen = ScreenDeployments
		}
	}
	return nil
}

func (gui *GUI) keyBack(*gocui.Gui, *gocui.View) error {
	if m := gui.gate.open(); m != nil {
		gui.gate.resolve(modalResult{})
		return nil
	}
	switch gui.screen {
	case ScreenHelp:
		gui.screen = gui.prevScreen
	case ScreenDeployments, ScreenAudits:
		gui.screen = ScreenApps
	}
	return nil
}

func (gui *GUI) keyTab(*gocui.Gui, *gocui.View) error {
	if gui.gate.open() != nil {
		return nil
	}
	switch gui.screen {
	case ScreenLogin:
		gui.login.switchFocus()
	case ScreenHelp:
	default:
		gui.screen = gui.screen.next()
		if gui.screen == ScreenAudits && len(gui.audits.Content) == 0 {
			gui.loadAudits(gui.auditPage)
		}
	}
	return nil
}
