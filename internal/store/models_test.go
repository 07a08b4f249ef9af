package store

import "testing"

func chapters(numbers ...int) []Chapter {
	out := make([]Chapter, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, Chapter{Number: n, Title: "t", Content: "body"})
	}
	return out
}

func outline(n int) []OutlineEntry {
	out := make([]OutlineEntry, n)
	for i := range out {
		out[i] = OutlineEntry{Number: i + 1, Title: "Chapter"}
	}
	return out
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name string
		book Book
		want Status
	}{
		{"no outline", Book{}, StatusOutlinePending},
		{"outline only", Book{Outline: outline(3)}, StatusOutlineReady},
		{"approved", Book{Outline: outline(3), Approved: true}, StatusOutlineApproved},
		{"queued keeps approved", Book{Outline: outline(3), Approved: true, Generation: GenerationQueued}, StatusOutlineApproved},
		{"running", Book{Outline: outline(3), Approved: true, Generation: GenerationRunning}, StatusWriting},
		{"partial", Book{Outline: outline(3), Chapters: chapters(2)}, StatusWriting},
		{"complete", Book{Outline: outline(3), Chapters: chapters(1, 2, 3)}, StatusChaptersComplete},
		{"complete while running", Book{Outline: outline(2), Chapters: chapters(1, 2), Generation: GenerationRunning}, StatusWriting},
		{"complete while queued", Book{Outline: outline(2), Chapters: chapters(1, 2), Approved: true, Generation: GenerationQueued}, StatusWriting},
		{"empty content is not generated", Book{Outline: outline(1), Chapters: []Chapter{{Number: 1, Title: "t"}}}, StatusOutlineReady},
		{"error wins", Book{Outline: outline(3), Chapters: chapters(1, 2, 3), Error: "boom"}, StatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveStatus(&tc.book); got != tc.want {
				t.Fatalf("DeriveStatus = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestValidateOutlineRequiresDenseNumbers(t *testing.T) {
	if err := ValidateOutline(outline(4)); err != nil {
		t.Fatalf("dense outline rejected: %v", err)
	}
	gap := []OutlineEntry{{Number: 1, Title: "a"}, {Number: 3, Title: "b"}}
	if err := ValidateOutline(gap); err == nil {
		t.Fatal("expected gap to be rejected")
	}
	zero := []OutlineEntry{{Number: 0, Title: "a"}}
	if err := ValidateOutline(zero); err == nil {
		t.Fatal("expected zero-based numbering to be rejected")
	}
	untitled := []OutlineEntry{{Number: 1}}
	if err := ValidateOutline(untitled); err == nil {
		t.Fatal("expected untitled entry to be rejected")
	}
}

func TestPutChapterKeepsOrder(t *testing.T) {
	b := &Book{Outline: outline(3)}
	b.PutChapter(Chapter{Number: 3, Content: "c"})
	b.PutChapter(Chapter{Number: 1, Content: "a"})
	b.PutChapter(Chapter{Number: 3, Content: "c2"})
	if len(b.Chapters) != 2 || b.Chapters[0].Number != 1 || b.Chapters[1].Content != "c2" {
		t.Fatalf("unexpected chapters %#v", b.Chapters)
	}
	missing := b.MissingChapters()
	if len(missing) != 1 || missing[0] != 2 {
		t.Fatalf("MissingChapters = %v, want [2]", missing)
	}
}
