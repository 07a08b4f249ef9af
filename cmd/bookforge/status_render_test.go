package main

import (
	"bytes"
	"strings"
	"testing"

	"bookforge/internal/deps"
	"bookforge/internal/store"
)

func TestChapterBar(t *testing.T) {
	tests := []struct {
		done, total int
		want        string
	}{
		{0, 4, "[--------------------] 0/4"},
		{1, 4, "[#####---------------] 1/4"},
		{4, 4, "[####################] 4/4"},
		{5, 4, "[####################] 4/4"},
		{-1, 3, "[--------------------] 0/3"},
		{0, 0, "no outline"},
	}
	for _, tc := range tests {
		if got := chapterBar(tc.done, tc.total); got != tc.want {
			t.Fatalf("chapterBar(%d, %d) = %q, want %q", tc.done, tc.total, got, tc.want)
		}
	}
}

func TestDescribeBookState(t *testing.T) {
	tests := []struct {
		status     store.Status
		generation store.Generation
		want       string
	}{
		{store.StatusOutlinePending, store.GenerationIdle, "outline_pending"},
		{store.StatusWriting, store.GenerationQueued, "writing (generation queued)"},
		{store.StatusWriting, store.GenerationRunning, "writing (generation running)"},
		{store.StatusChaptersComplete, store.GenerationIdle, "chapters_complete"},
	}
	for _, tc := range tests {
		if got := describeBookState(tc.status, tc.generation); got != tc.want {
			t.Fatalf("describeBookState(%s, %s) = %q, want %q", tc.status, tc.generation, got, tc.want)
		}
	}
}

func TestStatusPrinterBlock(t *testing.T) {
	var buf bytes.Buffer
	p := newStatusPrinter(&buf)
	if p.colorize {
		t.Fatal("buffer output should not be colorized")
	}

	p.header("Tidal Gardens")
	p.field("Subtitle", "")
	p.bookState(store.StatusError, store.GenerationIdle)
	p.chapters(2, 3)
	p.failure("provider timeout", 3)
	p.failure("", 0)
	p.provider(deps.Status{Name: "anthropic", Kind: "text", Available: true})
	p.provider(deps.Status{Name: "pexels", Kind: "stock", Optional: true, Detail: "no api key"})
	p.provider(deps.Status{Name: "openai", Kind: "image", Detail: "bad key"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	want := []string{
		"Tidal Gardens",
		"=============",
		"  Status:            error",
		"  Chapters:          [#############-------] 2/3",
		"  Error (ch 3):      provider timeout",
		"  text:              anthropic ready",
		"  stock:             pexels off (no api key)",
		"  image:             openai unavailable (bad key)",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), buf.String())
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRenderTableWrapsTitlesAndCountsBooks(t *testing.T) {
	long := "A Very Long Chapter Title That Keeps Going Past The Column Limit"
	out := renderTable(bookListColumns, [][]string{
		{"id-1", long, "French", "writing", "1/4", "2026-10-16"},
		{"id-2", "Short"},
	}, bookCountLabel(2))

	if strings.Contains(out, long) {
		t.Fatalf("title should wrap at 40 columns:\n%s", out)
	}
	for _, word := range []string{"Chapter", "Limit", "Short", "French"} {
		if !strings.Contains(out, word) {
			t.Fatalf("table missing %q:\n%s", word, out)
		}
	}
	if !strings.Contains(strings.ToLower(out), "2 books") {
		t.Fatalf("footer missing book count:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("table without columns should be empty")
	}
	if got := bookCountLabel(1); got != "1 book" {
		t.Fatalf("bookCountLabel(1) = %q", got)
	}
}
