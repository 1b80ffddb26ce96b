package gui

import (
	"fmt"

	"github.com/jroimartin/gocui"
)

const viewModal = "modal"

// confirmState backs the Yes/No dialog.
type confirmState struct {
	Message  string
	Selected int // 0 = Yes, 1 = No
}

func newConfirmState(message string) *confirmState {
	// Default to "No" so a stray Enter never confirms.
	return &confirmState{Message: message, Selected: 1}
}

func (c *confirmState) left() {
	if c.Selected > 0 {
		c.Selected--
	}
}

func (c *confirmState) right() {
	if c.Selected < 1 {
		c.Selected++
	}
}

func (c *confirmState) yes() bool { return c.Selected == 0 }

// modalBox centers a width x height box on screen.
func modalBox(g *gocui.Gui, width, height int) (int, int, int, int) {
	maxX, maxY := g.Size()
	if width > maxX-4 {
		width = maxX - 4
	}
	if height > maxY-2 {
		height = maxY - 2
	}
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2
	return x0, y0, x0 + width, y0 + height
}

func (gui *GUI) renderModal(g *gocui.Gui, m *modal) error {
	width, height := 60, 7
	switch m.kind {
	case modalBranch:
		height = len(m.branch.req.Branches) + 7
		if height < 9 {
			height = 9
		}
	case modalText:
		height = 6
	}

	x0, y0, x1, y1 := modalBox(g, width, height)
	v, err := g.SetView(viewModal, x0, y0, x1, y1)
	if err != nil && err != gocui.ErrUnknownView {
		return err
	}
	v.Frame = true
	v.Title = " " + m.title + " "
	v.Wrap = true
	v.Editable = m.kind == modalText
	v.Editor = gocui.EditorFunc(gui.editInput)
	v.Clear()

	switch m.kind {
	case modalConfirm:
		renderConfirm(v, m.confirm)
	case modalBranch:
		renderBranchChooser(v, m.branch)
	case modalText:
		renderInput(v, m.input, width-4)
	}

	if _, err := g.SetCurrentView(viewModal); err != nil {
		return err
	}
	_, err = g.SetViewOnTop(viewModal)
	return err
}

func renderConfirm(v *gocui.View, c *confirmState) {
	fmt.Fprintln(v)
	fmt.Fprintf(v, " %s\n", c.Message)
	fmt.Fprintln(v)

	yesStyle := "  [ Yes ]  "
	noStyle := "  [ No ]  "
	if c.yes() {
		yesStyle = " " + cyan(iconArrow) + green("[ Yes ]") + "  "
	} else {
		noStyle = " " + cyan(iconArrow) + red("[ No ]") + "  "
	}
	fmt.Fprintf(v, "       %s    %s\n", yesStyle, noStyle)
	fmt.Fprintln(v, dim("  ←/→ select · y/n · Enter confirm · Esc cancel"))
}

func renderBranchChooser(v *gocui.View, b *branchState) {
	fmt.Fprintln(v)
	if len(b.req.Branches) == 0 {
		fmt.Fprintln(v, yellow(" No branches available for this repository."))
	}
	for i, name := range b.req.Branches {
		if i == b.selected {
			fmt.Fprintf(v, " %s %s\n", cyan(iconArrow), bold(name))
			continue
		}
		fmt.Fprintf(v, "   %s\n", name)
	}
	fmt.Fprintln(v)
	if b.typ != "" {
		fmt.Fprintf(v, " Type: %s\n", deployTypeBadge(b.typ))
	}
	if _, ok := b.choice(); ok {
		fmt.Fprintln(v, dim("  ↑/↓ branch · t toggle type · Enter deploy · Esc cancel"))
	} else {
		fmt.Fprintln(v, dim("  Esc cancel"))
	}
}
