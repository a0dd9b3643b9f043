package pgn

import (
	"reflect"
	"testing"
)

func TestStripClocks_ChessComFormat(t *testing.T) {
	in := "1. e4 {[%clk 0:09:58.1]} 1... e5 {[%clk 0:09:57.3]} 2. Nf3 {[%clk 0:09:55]} 2... Nc6 {[%clk 0:09:50.2]} 3. Bb5 {[%clk 0:09:49]} 3... a6 {[%clk 0:09:45]} 1-0"
	clean, clocks := StripClocks(in)

	wantClean := "1. e4 1... e5 2. Nf3 2... Nc6 3. Bb5 3... a6 1-0"
	if clean != wantClean {
		t.Fatalf("clean mismatch:\n got %q\nwant %q", clean, wantClean)
	}
	wantClocks := []string{"0:09:58.1", "0:09:57.3", "0:09:55", "0:09:50.2", "0:09:49", "0:09:45"}
	if !reflect.DeepEqual(clocks, wantClocks) {
		t.Fatalf("clocks mismatch: got %v want %v", clocks, wantClocks)
	}
}

func TestStripClocks_MissingAnnotationKeepsAlignment(t *testing.T) {
	clean, clocks := StripClocks("1. e4 {[%clk 0:10:00]} e5 2. Nf3 {[%clk 0:09:59]} Nc6")
	if clean != "1. e4 e5 2. Nf3 Nc6" {
		t.Fatalf("unexpected clean %q", clean)
	}
	want := []string{"0:10:00", "", "0:09:59"}
	if !reflect.DeepEqual(clocks, want) {
		t.Fatalf("clocks mismatch: got %q want %q", clocks, want)
	}
}

func TestStripClocks_MultipleAnnotationsKeepFirst(t *testing.T) {
	_, clocks := StripClocks("1. e4 {[%clk 0:10:00]} {[%clk 0:08:00]} e5 {[%clk 0:09:30] [%clk 0:07:00]}")
	want := []string{"0:10:00", "0:09:30"}
	if !reflect.DeepEqual(clocks, want) {
		t.Fatalf("clocks mismatch: got %q want %q", clocks, want)
	}
}

func TestStripClocks_BracketStyles(t *testing.T) {
	clean, clocks := StripClocks("1. e4 [%clk 0:10:00] e5 (%clk 0:09:59) 2. Nf3 {%clk 0:09:58} Nc6 { [%clk 0:09:57] }")
	if clean != "1. e4 e5 2. Nf3 Nc6" {
		t.Fatalf("unexpected clean %q", clean)
	}
	want := []string{"0:10:00", "0:09:59", "0:09:58", "0:09:57"}
	if !reflect.DeepEqual(clocks, want) {
		t.Fatalf("clocks mismatch: got %q want %q", clocks, want)
	}
}

func TestStripClocks_NoAnnotations(t *testing.T) {
	clean, clocks := StripClocks("1.  e4   e5\n2. Nf3\tNc6  ")
	if clean != "1. e4 e5 2. Nf3 Nc6" {
		t.Fatalf("unexpected clean %q", clean)
	}
	if len(clocks) != 0 {
		t.Fatalf("expected no clocks, got %q", clocks)
	}
}

func TestStripClocks_MalformedDropped(t *testing.T) {
	clean, clocks := StripClocks("1. e4 {[%clk abc]} e5 {[%clk]} 2. Nf3 {[%clk 0:09:00")
	if clean != "1. e4 e5 2. Nf3" {
		t.Fatalf("unexpected clean %q", clean)
	}
	want := []string{"", "", "0:09:00"}
	if !reflect.DeepEqual(clocks, want) {
		t.Fatalf("clocks mismatch: got %q want %q", clocks, want)
	}
	if got := plies(t, clean); got != 3 {
		t.Fatalf("expected 3 plies after cleanup, got %d", got)
	}
}

func TestStripClocks_UnclosedCommentRunsToEnd(t *testing.T) {
	clean, clocks := StripClocks("1. e4 {[%clk 0:09:58]} e5 {unterminated [%clk 0:09:57] 2. Nf3")
	if clean != "1. e4 e5 {unterminated 2. Nf3}" {
		t.Fatalf("unexpected clean %q", clean)
	}
	want := []string{"0:09:58", "0:09:57"}
	if !reflect.DeepEqual(clocks, want) {
		t.Fatalf("clocks mismatch: got %q want %q", clocks, want)
	}
	if got := plies(t, clean); got != 2 {
		t.Fatalf("expected 2 plies, got %d", got)
	}
}

func TestStripClocks_KeepsOtherCommentsAndVariations(t *testing.T) {
	clean, clocks := StripClocks("1. e4 {[%clk 0:10:00] best by test} e5 (1... c5 {[%clk 0:09:00]}) 2. Nf3 $1 {[%clk 0:09:58]} *")
	if clean != "1. e4 {best by test} e5 ( 1... c5 ) 2. Nf3 $1 *" {
		t.Fatalf("unexpected clean %q", clean)
	}
	want := []string{"0:10:00", "", "0:09:58"}
	if !reflect.DeepEqual(clocks, want) {
		t.Fatalf("clocks mismatch: got %q want %q", clocks, want)
	}
}

func TestStripClocks_Idempotent(t *testing.T) {
	inputs := []string{
		"1. e4 {[%clk 0:09:58.1]} 1... e5 {[%clk 0:09:57.3]} 2. Nf3 {[%clk 0:09:55]} 1-0",
		"1.e4 e5 {comment {nested} [%clk 0:01:00]} 2.Nf3 ; line comment [%clk 0:00:59]\n Nc6",
		"1. e4 {[%clk 0:10:00 2. Nf3 (2. d4 d5) *",
		"",
	}
	for _, in := range inputs {
		clean, clocks := StripClocks(in)
		again, againClocks := StripClocks(clean)
		if again != clean {
			t.Fatalf("not idempotent for %q:\n first %q\nsecond %q", in, clean, again)
		}
		if len(againClocks) != 0 {
			t.Fatalf("clean text still carries clocks: %q", againClocks)
		}
		if n := plies(t, clean); len(clocks) > n {
			t.Fatalf("clock count %d exceeds ply count %d for %q", len(clocks), n, in)
		}
	}
}

func TestParse_MainlineSkipsVariationsAndAnnotations(t *testing.T) {
	p, err := Parse("1. e4!? e5 2. Nf3 $2 (2. f4 exf4) Nc6?! 3. Bb5 {Ruy} 1/2-1/2")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"e4", "e5", "Nf3", "Nc6", "Bb5"}
	if !reflect.DeepEqual(p.Replay.SAN, want) {
		t.Fatalf("mainline mismatch: got %v want %v", p.Replay.SAN, want)
	}
}

func plies(t *testing.T, movetext string) int {
	t.Helper()
	p, err := Parse(movetext)
	if err != nil {
		return 0
	}
	return p.Plies()
}
