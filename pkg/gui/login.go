package gui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jroimartin/gocui"
	"go.uber.org/zap"
)

const (
	viewLogin    = "login"
	loginTimeout = 30 * time.Second
)

// loginForm is the in-console sign-in screen.
type loginForm struct {
	email    *inputState
	password *inputState
	focus    int // 0 = email, 1 = password
	message  string
	busy     bool
}

func newLoginForm(email, message string) *loginForm {
	f := &loginForm{
		email:    newInputState(email, false),
		password: newInputState("", true),
		message:  message,
	}
	if email != "" {
		f.focus = 1
	}
	return f
}

func (f *loginForm) focused() *inputState {
	if f.focus == 1 {
		return f.password
	}
	return f.email
}

func (f *loginForm) switchFocus() {
	f.focus = 1 - f.focus
}

// credentials returns the trimmed email and the password, or a reason the
// form cannot be submitted yet.
func (f *loginForm) credentials() (string, string, string) {
	email := strings.TrimSpace(f.email.Text)
	if email == "" {
		return "", "", "Email is required"
	}
	if f.password.Text == "" {
		return "", "", "Password is required"
	}
	return email, f.password.Text, ""
}

// Toast implements session.Notifier. It may be called from any goroutine.
func (gui *GUI) Toast(msg string) {
	gui.toastMu.Lock()
	gui.toast = msg
	gui.toastAt = time.Now()
	gui.toastMu.Unlock()
	gui.appendLog([]string{red(iconToast) + " " + msg})
	gui.redraw()
	time.AfterFunc(toastTTL, gui.redraw)
}

// SessionExpired sends the operator back to the sign-in screen. The session
// interceptor calls it once per expired credential.
func (gui *GUI) SessionExpired() {
	gui.post(func() {
		gui.showLogin("Session expired, please sign in again")
	})
}

func (gui *GUI) showLogin(message string) {
	email := ""
	if gui.login != nil {
		email = gui.login.email.Text
	}
	gui.login = newLoginForm(email, message)
	if gui.screen != ScreenLogin {
		gui.prevScreen = gui.screen
	}
	gui.screen = ScreenLogin
}

func (gui *GUI) signOut() {
	if gui.store != nil {
		if _, err := gui.store.Clear(); err != nil {
			gui.logError("Sign out failed: " + err.Error())
			return
		}
	}
	gui.logInfo("Signed out")
	gui.showLogin("Signed out")
}

func (gui *GUI) submitLogin() {
	f := gui.login
	if f == nil || f.busy {
		return
	}
	email, password, problem := f.credentials()
	if problem != "" {
		f.message = problem
		return
	}
	f.busy = true
	f.message = "Signing in..."

	go func() {
		ctx, cancel := context.WithTimeout(gui.ctx, loginTimeout)
		defer cancel()
		resp, err := gui.backend.Login(ctx, email, password)
		if err == nil {
			err = gui.store.Save(resp.Token)
		}
		gui.post(func() {
			f.busy = false
			if err != nil {
				gui.logger.Warn("sign in failed", zap.String("email", email), zap.Error(err))
				f.message = "Sign in failed"
				f.password.clear()
				f.focus = 1
				return
			}
			gui.logSuccess("Signed in as " + email)
			gui.login = nil
			gui.screen = ScreenApps
			gui.reload()
		})
	}()
}

func (gui *GUI) renderLogin(g *gocui.Gui) error {
	f := gui.login
	if f == nil {
		return nil
	}
	width := 56
	x0, y0, x1, y1 := modalBox(g, width, 11)
	v, err := g.SetView(viewLogin, x0, y0, x1, y1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Frame = true
	v.Title = " Sign in "
	v.Editable = true
	v.Editor = gocui.EditorFunc(gui.editInput)
	v.Clear()

	fieldW := width - 14
	email, _ := f.email.display(fieldW)
	password, _ := f.password.display(fieldW)
	label := func(i int, name string) string {
		if f.focus == i {
			return cyan(iconArrow) + " " + padRight(name, 10)
		}
		return "  " + padRight(name, 10)
	}

	fmt.Fprintln(v)
	fmt.Fprintf(v, " %s %s\n", label(0, "Email"), email)
	fmt.Fprintf(v, " %s %s\n", label(1, "Password"), password)
	fmt.Fprintln(v)
	if f.message != "" {
		fmt.Fprintf(v, " %s\n", yellow(f.message))
	} else {
		fmt.Fprintln(v)
	}
	fmt.Fprintln(v)
	fmt.Fprintln(v, dim("  Tab switch field · Enter sign in · Ctrl+C quit"))

	_, col := f.focused().display(fieldW)
	_ = v.SetCursor(col+14, 1+f.focus)

	if _, err := g.SetCurrentView(viewLogin); err != nil {
		return err
	}
	_, err = g.SetViewOnTop(viewLogin)
	return err
}
