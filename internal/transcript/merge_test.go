package transcript_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/MrWong99/captionlens/internal/transcript"
)

var t0 = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func layOut(tokens []*transcript.Token, at time.Time) {
	for _, tok := range tokens {
		tok.MarkLaidOut(at)
	}
}

func TestMerge_Continuation(t *testing.T) {
	t.Parallel()

	previous := transcript.Tokenize("I think the weather", false)
	got := transcript.Merge(previous, "I think the weather is nice")

	if len(got) != 6 {
		t.Fatalf("Merge: got %d tokens %q, want 6", len(got), raws(got))
	}
	for i := range previous {
		if got[i] != previous[i] {
			t.Errorf("Merge: token %d is a new *Token, want the previous one", i)
		}
	}
	if tail := raws(got[4:]); !equalStrings(tail, []string{"is", "nice"}) {
		t.Errorf("Merge: appended %q, want [is nice]", tail)
	}
}

func TestMerge_PreservesLayoutState(t *testing.T) {
	t.Parallel()

	previous := transcript.Tokenize("connect to the wifi", false)
	layOut(previous, t0)

	got := transcript.Merge(previous, "connect to the Wi-Fi now")
	if len(got) != 5 {
		t.Fatalf("Merge: got %q, want 5 tokens", raws(got))
	}
	if got[3] != previous[3] {
		t.Fatal("Merge: corrected token lost its identity")
	}
	if !got[3].LaidOut || !got[3].LaidOutAt.Equal(t0) {
		t.Errorf("Merge: layout state changed: LaidOut=%v LaidOutAt=%v", got[3].LaidOut, got[3].LaidOutAt)
	}
	if got[3].Raw != "wifi" {
		t.Errorf("Merge: displayed token Raw=%q, want %q", got[3].Raw, "wifi")
	}
	if got[3].Pending != "Wi-Fi" {
		t.Errorf("Merge: Pending=%q, want %q", got[3].Pending, "Wi-Fi")
	}
}

func TestMerge_CommitsCorrectionOffScreen(t *testing.T) {
	t.Parallel()

	previous := transcript.Tokenize("connect to the wifi", false)
	got := transcript.Merge(previous, "connect to the Wi-Fi")
	if got[3] != previous[3] {
		t.Fatal("Merge: corrected token lost its identity")
	}
	if got[3].Raw != "Wi-Fi" {
		t.Errorf("Merge: off-screen token Raw=%q, want %q", got[3].Raw, "Wi-Fi")
	}
}

func TestMerge_Reset(t *testing.T) {
	t.Parallel()

	previous := transcript.Tokenize("good morning everyone", false)
	res := transcript.MergeDetailed(previous, "xyz qwv")
	if res.Kind != transcript.MergeReset {
		t.Errorf("MergeDetailed: Kind=%v, want reset", res.Kind)
	}
	want := transcript.Tokenize("xyz qwv", false)
	if !reflect.DeepEqual(res.Tokens, want) {
		t.Errorf("MergeDetailed: got %q, want %q", raws(res.Tokens), raws(want))
	}
}

func TestMerge_EmptyPrevious(t *testing.T) {
	t.Parallel()

	res := transcript.MergeDetailed(nil, "hello there")
	if res.Kind != transcript.MergeFresh {
		t.Errorf("MergeDetailed: Kind=%v, want fresh", res.Kind)
	}
	if got := raws(res.Tokens); !equalStrings(got, []string{"Hello", "there"}) {
		t.Errorf("MergeDetailed: got %q", got)
	}
}

func TestMerge_EmptyIncoming(t *testing.T) {
	t.Parallel()

	previous := transcript.Tokenize("hello there", false)
	if got := transcript.Merge(previous, ""); len(got) != 0 {
		t.Errorf("Merge(prev, \"\"): got %q, want empty", raws(got))
	}
}

func TestMerge_SkipsInsertedWord(t *testing.T) {
	t.Parallel()

	previous := transcript.Tokenize("we went to store", false)
	layOut(previous, t0)

	got := transcript.Merge(previous, "we went to the store today")
	if want := []string{"We", "went", "to", "store", "today"}; !equalStrings(raws(got), want) {
		t.Fatalf("Merge: got %q, want %q", raws(got), want)
	}
	for i := range previous {
		if got[i] != previous[i] {
			t.Errorf("Merge: token %d replaced", i)
		}
	}
}

func TestMerge_CarriesLineBreak(t *testing.T) {
	t.Parallel()

	previous := append(transcript.Tokenize("hello there", false), transcript.NewLineBreak())
	got := transcript.Merge(previous, "hello there friend")
	if len(got) != 4 {
		t.Fatalf("Merge: got %q, want 4 tokens", raws(got))
	}
	if got[2] != previous[2] || !got[2].IsLineBreak() {
		t.Errorf("Merge: line break not carried forward, got %q", raws(got))
	}
	if got[3].Raw != "friend" {
		t.Errorf("Merge: last token %q, want friend", got[3].Raw)
	}
}

func TestMerge_OnlyTailRealigns(t *testing.T) {
	t.Parallel()

	const words = "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen"
	previous := transcript.Tokenize(words, false)
	got := transcript.Merge(previous, words+" sixteen")

	if len(got) != len(previous)+1 {
		t.Fatalf("Merge: got %d tokens, want %d", len(got), len(previous)+1)
	}
	for i := range previous {
		if got[i] != previous[i] {
			t.Errorf("Merge: token %d (%q) replaced", i, previous[i].Raw)
		}
	}
	if got[len(got)-1].Raw != "sixteen" {
		t.Errorf("Merge: last token %q, want sixteen", got[len(got)-1].Raw)
	}
}

func TestMerge_Eastern(t *testing.T) {
	t.Parallel()

	previous := transcript.Tokenize("今天天气", true)
	got := transcript.Merge(previous, "今天天气很好")
	if len(got) != 6 {
		t.Fatalf("Merge: got %q, want 6 tokens", raws(got))
	}
	for i := range previous {
		if got[i] != previous[i] {
			t.Errorf("Merge: token %d replaced", i)
		}
	}
}

func withLineBreak(words string, after int) []*transcript.Token {
	toks := transcript.Tokenize(words, false)
	out := append([]*transcript.Token{}, toks[:after]...)
	out = append(out, transcript.NewLineBreak())
	return append(out, toks[after:]...)
}

func TestMerge_LongAppendKeepsEveryToken(t *testing.T) {
	t.Parallel()

	const fifteen = "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen"
	const twelve = "one two three four five six seven eight nine ten eleven twelve"
	tests := []struct {
		name     string
		previous []*transcript.Token
		prefix   string
		added    string
		eastern  bool
	}{
		{
			name:     "short latin",
			previous: transcript.Tokenize("I think the weather", false),
			prefix:   "I think the weather",
			added:    "is really nice today so we should go out for a walk",
		},
		{
			name:     "long latin",
			previous: transcript.Tokenize(fifteen, false),
			prefix:   fifteen,
			added:    "sixteen seventeen eighteen nineteen twenty red green blue yellow purple orange black",
		},
		{
			name:     "latin with line break",
			previous: withLineBreak(twelve, 5),
			prefix:   twelve,
			added:    "red green blue yellow purple orange black white brown pink grey",
		},
		{
			name:     "short eastern",
			previous: transcript.Tokenize("今天天气", true),
			prefix:   "今天天气",
			added:    "很好我们应该出去散步吧朋友们",
			eastern:  true,
		},
		{
			name:     "long eastern",
			previous: transcript.Tokenize("我们今天下午去公园散步然后回家吃饭", true),
			prefix:   "我们今天下午去公园散步然后回家吃饭",
			added:    "晚上再看一部新的电影吧",
			eastern:  true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			incoming := tc.prefix + " " + tc.added
			if tc.eastern {
				incoming = tc.prefix + tc.added
			}
			added := transcript.Tokenize(tc.added, tc.eastern)
			if len(added) <= transcript.MaxPendingTokens {
				t.Fatalf("%s: appends %d tokens, want more than %d", tc.name, len(added), transcript.MaxPendingTokens)
			}

			r := transcript.MergeDetailed(tc.previous, incoming)
			if r.Kind != transcript.MergeAligned {
				t.Fatalf("MergeDetailed(%q): Kind=%v, want merged", incoming, r.Kind)
			}
			if r.Kept != len(tc.previous) {
				t.Errorf("MergeDetailed(%q): Kept=%d, want %d", incoming, r.Kept, len(tc.previous))
			}
			if len(r.Tokens) != len(tc.previous)+len(added) {
				t.Fatalf("MergeDetailed(%q): got %d tokens %q, want %d", incoming, len(r.Tokens), raws(r.Tokens), len(tc.previous)+len(added))
			}
			for i := range tc.previous {
				if r.Tokens[i] != tc.previous[i] {
					t.Errorf("MergeDetailed(%q): token %d (%q) replaced", incoming, i, tc.previous[i].Raw)
				}
			}
			for i, want := range added {
				if got := r.Tokens[len(tc.previous)+i]; got.Normalized != want.Normalized {
					t.Errorf("MergeDetailed(%q): appended token %d is %q, want %q", incoming, i, got.Normalized, want.Normalized)
				}
			}
		})
	}
}

func TestMerge_SingleRuneIsNoAlignment(t *testing.T) {
	t.Parallel()

	previous := transcript.Tokenize("I think so", false)
	r := transcript.MergeDetailed(previous, "pick a card")
	if r.Kind != transcript.MergeReset {
		t.Errorf("MergeDetailed(%q): Kind=%v common=%d, want reset", "pick a card", r.Kind, r.Common)
	}

	// A lone previous token may still align on one rune.
	single := transcript.Tokenize("a", false)
	r = transcript.MergeDetailed(single, "a cat")
	if r.Kind != transcript.MergeAligned || r.Tokens[0] != single[0] {
		t.Errorf("MergeDetailed(%q): Kind=%v, want merged keeping the previous token", "a cat", r.Kind)
	}
}

func TestAreTokensNew(t *testing.T) {
	t.Parallel()

	long := transcript.Tokenize("this is a long sentence", false)
	tests := []struct {
		name     string
		src, dst []*transcript.Token
		want     bool
	}{
		{"shrink to one", long, transcript.Tokenize("okay", false), true},
		{"shrink to two", long, transcript.Tokenize("okay then", false), true},
		{"shrink to three", long, transcript.Tokenize("okay then so", false), false},
		{"empty dst", long, nil, false},
		{"short src", long[:3], transcript.Tokenize("ok", false), false},
	}
	for _, tc := range tests {
		if got := transcript.AreTokensNew(tc.src, tc.dst); got != tc.want {
			t.Errorf("AreTokensNew(%s): got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestText(t *testing.T) {
	t.Parallel()

	t.Run("drops open punctuation on the last token", func(t *testing.T) {
		t.Parallel()
		toks := transcript.Tokenize("hello world.", false)
		if got := transcript.Text(toks, t0); got != "Hello world" {
			t.Errorf("Text: got %q, want %q", got, "Hello world")
		}
	})

	t.Run("keeps finalized punctuation", func(t *testing.T) {
		t.Parallel()
		toks := transcript.Tokenize("hello world.", false)
		layOut(toks, t0)
		if got := transcript.Text(toks, t0.Add(2*time.Second)); got != "Hello world." {
			t.Errorf("Text: got %q, want %q", got, "Hello world.")
		}
	})

	t.Run("hardens comma before capitalized word", func(t *testing.T) {
		t.Parallel()
		toks := transcript.Tokenize("ok, Google", false)
		layOut(toks, t0)
		if got := transcript.Text(toks, t0.Add(2*time.Second)); got != "Ok. Google" {
			t.Errorf("Text: got %q, want %q", got, "Ok. Google")
		}
	})

	t.Run("no repair before finalization", func(t *testing.T) {
		t.Parallel()
		toks := transcript.Tokenize("ok, Google", false)
		layOut(toks, t0)
		if got := transcript.Text(toks, t0.Add(500*time.Millisecond)); got != "Ok, Google" {
			t.Errorf("Text: got %q, want %q", got, "Ok, Google")
		}
	})

	t.Run("line breaks", func(t *testing.T) {
		t.Parallel()
		toks := append(transcript.Tokenize("hi there", false), transcript.NewLineBreak())
		toks = append(toks, transcript.Tokenize("bye", false)...)
		if got := transcript.Text(toks, t0); got != "Hi there \nBye" {
			t.Errorf("Text: got %q, want %q", got, "Hi there \nBye")
		}
	})
}
