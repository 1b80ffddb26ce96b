package gui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jroimartin/gocui"
)

// inputState is a single-line text field. Col counts runes, not bytes.
type inputState struct {
	Text   string
	Col    int
	Masked bool
}

func newInputState(initial string, masked bool) *inputState {
	return &inputState{Text: initial, Col: utf8.RuneCountInString(initial), Masked: masked}
}

// runeIndexToByteOffset converts a rune index into a byte offset in s.
func runeIndexToByteOffset(s string, runeIdx int) int {
	off := 0
	for i := 0; i < runeIdx && off < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[off:])
		off += size
	}
	return off
}

func (in *inputState) insert(r rune) {
	off := runeIndexToByteOffset(in.Text, in.Col)
	in.Text = in.Text[:off] + string(r) + in.Text[off:]
	in.Col++
}

func (in *inputState) backspace() {
	if in.Col == 0 {
		return
	}
	cur := runeIndexToByteOffset(in.Text, in.Col)
	prev := runeIndexToByteOffset(in.Text, in.Col-1)
	in.Text = in.Text[:prev] + in.Text[cur:]
	in.Col--
}

func (in *inputState) del() {
	if in.Col >= utf8.RuneCountInString(in.Text) {
		return
	}
	cur := runeIndexToByteOffset(in.Text, in.Col)
	next := runeIndexToByteOffset(in.Text, in.Col+1)
	in.Text = in.Text[:cur] + in.Text[next:]
}

func (in *inputState) left() {
	if in.Col > 0 {
		in.Col--
	}
}

func (in *inputState) right() {
	if in.Col < utf8.RuneCountInString(in.Text) {
		in.Col++
	}
}

func (in *inputState) home() { in.Col = 0 }

func (in *inputState) end() { in.Col = utf8.RuneCountInString(in.Text) }

func (in *inputState) clear() {
	in.Text = ""
	in.Col = 0
}

// display returns the visible text and cursor column for a field width,
// scrolling so the cursor stays in view.
func (in *inputState) display(width int) (string, int) {
	runes := []rune(in.Text)
	if in.Masked {
		runes = []rune(strings.Repeat("•", len(runes)))
	}
	if width <= 0 {
		return string(runes), in.Col
	}
	start := 0
	if in.Col >= width {
		start = in.Col - width + 1
	}
	end := start + width
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end]), in.Col - start
}

func renderInput(v *gocui.View, in *inputState, width int) {
	text, _ := in.display(width)
	fmt.Fprintln(v)
	fmt.Fprintf(v, " %s\n", text)
	fmt.Fprintln(v)
	fmt.Fprintln(v, dim("  Enter save · Esc cancel · Ctrl+U clear"))
	placeCursor(v, in, width, 1)
}

// placeCursor shows the terminal cursor inside a field drawn at row y.
func placeCursor(v *gocui.View, in *inputState, width, y int) {
	_, col := in.display(width)
	_ = v.SetCursor(col+1, y)
}
