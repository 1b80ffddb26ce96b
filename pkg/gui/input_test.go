package gui

import "testing"

func TestRuneIndexToByteOffset(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		runeIdx  int
		expected int
	}{
		{"empty string", "", 0, 0},
		{"ascii at 0", "hello", 0, 0},
		{"ascii at 3", "hello", 3, 3},
		{"ascii at end", "hello", 5, 5},
		{"past end", "hello", 9, 5},
		{"multibyte rune 1", "héllo", 1, 1},
		{"multibyte after é", "héllo", 2, 3},
		{"multibyte at end", "héllo", 5, 6},
		{"cjk rune 1", "日本語", 1, 3},
		{"cjk rune 3 (end)", "日本語", 3, 9},
		{"after emoji", "a😀b", 2, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runeIndexToByteOffset(tt.s, tt.runeIdx)
			if got != tt.expected {
				t.Errorf("runeIndexToByteOffset(%q, %d) = %d, want %d", tt.s, tt.runeIdx, got, tt.expected)
			}
		})
	}
}

func TestInputEditing(t *testing.T) {
	in := newInputState("hllo", false)
	if in.Col != 4 {
		t.Fatalf("Col = %d, want cursor at end (4)", in.Col)
	}

	in.home()
	in.right()
	in.insert('é')
	if in.Text != "héllo" || in.Col != 2 {
		t.Fatalf("after insert: %q col %d", in.Text, in.Col)
	}

	in.backspace()
	if in.Text != "hllo" || in.Col != 1 {
		t.Fatalf("after backspace: %q col %d", in.Text, in.Col)
	}

	in.del()
	if in.Text != "hlo" || in.Col != 1 {
		t.Fatalf("after delete: %q col %d", in.Text, in.Col)
	}

	in.end()
	in.del()
	in.right()
	if in.Text != "hlo" || in.Col != 3 {
		t.Fatalf("at end: %q col %d", in.Text, in.Col)
	}

	in.home()
	in.backspace()
	in.left()
	if in.Text != "hlo" || in.Col != 0 {
		t.Fatalf("at start: %q col %d", in.Text, in.Col)
	}

	in.clear()
	if in.Text != "" || in.Col != 0 {
		t.Fatalf("after clear: %q col %d", in.Text, in.Col)
	}
}

func TestInputDisplay(t *testing.T) {
	tests := []struct {
		name    string
		in      *inputState
		width   int
		want    string
		wantCol int
	}{
		{"fits", newInputState("abc", false), 10, "abc", 3},
		{"masked", newInputState("pässword", true), 20, "••••••••", 8},
		{"scrolls to cursor", newInputState("abcdefgh", false), 4, "fgh", 3},
		{"cursor inside", &inputState{Text: "abcdefgh", Col: 2}, 4, "abcd", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, col := tt.in.display(tt.width)
			if got != tt.want || col != tt.wantCol {
				t.Errorf("display(%d) = %q, %d; want %q, %d", tt.width, got, col, tt.want, tt.wantCol)
			}
		})
	}
}
