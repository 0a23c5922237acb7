package transcript_test

import (
	"testing"

	"github.com/MrWong99/captionlens/internal/transcript"
)

func raws(tokens []*transcript.Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Raw
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		eastern bool
		want    []string
	}{
		{"capitalizes sentence starts", "hello world. this is imu", false, []string{"Hello", "world.", "This", "is", "IMU"}},
		{"question and exclamation", "really? yes! fine", false, []string{"Really?", "Yes!", "Fine"}},
		{"newline sticks to previous word", "hello\nworld", false, []string{"Hello\n", "world"}},
		{"model code", "the df1 board", false, []string{"The", "DF1", "board"}},
		{"long alphanumeric left alone", "abc12345", false, []string{"Abc12345"}},
		{"collapses double spaces", "a  b", false, []string{"A", "b"}},
		{"eastern per character", "我是 谁", true, []string{"我", "是", "谁"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := raws(transcript.Tokenize(tc.text, tc.eastern))
			if !equalStrings(got, tc.want) {
				t.Errorf("Tokenize(%q): got %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestTokenize_Empty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "\n\n", "\t"} {
		got := transcript.Tokenize(in, false)
		if got == nil || len(got) != 0 {
			t.Errorf("Tokenize(%q): got %v, want empty non-nil slice", in, got)
		}
	}
}

func TestTokenize_Normalized(t *testing.T) {
	t.Parallel()

	toks := transcript.Tokenize("Wi-Fi, (really) 你好。", false)
	want := []string{"wifi", "really", "你好。"}
	for i, tok := range toks {
		if tok.Normalized != want[i] {
			t.Errorf("token %d Normalized: got %q, want %q", i, tok.Normalized, want[i])
		}
	}

	east := transcript.Tokenize("你好。", true)
	if len(east) != 3 {
		t.Fatalf("Tokenize eastern: got %d tokens, want 3", len(east))
	}
	if east[2].Normalized != "" {
		t.Errorf("eastern full stop Normalized: got %q, want empty", east[2].Normalized)
	}
	if !east[0].Eastern {
		t.Error("eastern token: Eastern=false, want true")
	}
}

func TestToken_Capitalized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want bool
	}{
		{"Google", true},
		{"google", false},
		{"I", false},
		{"IMU", true},
		{"éclair", false},
	}
	for _, tc := range tests {
		if got := transcript.NewToken(tc.raw, false).Capitalized; got != tc.want {
			t.Errorf("NewToken(%q).Capitalized: got %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestToken_SimilarTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b    string
		eastern bool
		want    bool
	}{
		{"Wifi", "Wi-Fi", false, true},
		{"weather", "weathers", false, true},
		{"weather", "whether", false, false},
		{"cat", "dog", false, false},
		{"我", "我", true, true},
		{"我", "你", true, false},
	}
	for _, tc := range tests {
		a := transcript.NewToken(tc.a, tc.eastern)
		b := transcript.NewToken(tc.b, tc.eastern)
		if got := a.SimilarTo(b); got != tc.want {
			t.Errorf("SimilarTo(%q, %q): got %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}

	br := transcript.NewLineBreak()
	if br.SimilarTo(transcript.NewToken("a", false)) {
		t.Error("line break similar to a word, want not similar")
	}
	if !br.SimilarTo(transcript.NewLineBreak()) {
		t.Error("line break not similar to line break")
	}
}

func TestIsEastern(t *testing.T) {
	t.Parallel()

	if !transcript.IsEastern("hello 世界") {
		t.Error(`IsEastern("hello 世界") = false, want true`)
	}
	if transcript.IsEastern("hello world") {
		t.Error(`IsEastern("hello world") = true, want false`)
	}
}
