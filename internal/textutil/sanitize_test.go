package textutil

import (
	"strings"
	"testing"
)

func TestExportFileName(t *testing.T) {
	tests := []struct {
		title, id, ext string
		want           string
	}{
		{"Le Jardin Secret", "0123456789abcdef", "pdf", "Le_Jardin_Secret_01234567.pdf"},
		{"  Cooking:  Basics ", "abc", ".EPUB", "Cooking-_Basics_abc.epub"},
		{"", "deadbeefcafe", "docx", "book_deadbeef.docx"},
		{"Why?", "", "pdf", "Why.pdf"},
	}
	for _, tt := range tests {
		if got := ExportFileName(tt.title, tt.id, tt.ext); got != tt.want {
			t.Errorf("ExportFileName(%q, %q, %q) = %q, want %q", tt.title, tt.id, tt.ext, got, tt.want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(` a/b\c:d*e?f"g<h>i|j `); got != "a-b-c-d-efghij" {
		t.Fatalf("SanitizeFileName = %q", got)
	}
}

func TestASCIIFileName(t *testing.T) {
	if got := ASCIIFileName("Été_01.pdf"); got != "t_01.pdf" {
		t.Fatalf("ASCIIFileName = %q", got)
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("short text", 50); got != "short text" {
		t.Fatalf("Excerpt short = %q", got)
	}
	long := strings.Repeat("word ", 100) + "ending here"
	got := Excerpt(long, 30)
	if !strings.HasPrefix(got, "…") || !strings.HasSuffix(got, "ending here") {
		t.Fatalf("Excerpt long = %q", got)
	}
	if len([]rune(got)) > 31 {
		t.Fatalf("Excerpt too long: %d runes", len([]rune(got)))
	}
	if Excerpt("x", 0) != "" {
		t.Fatal("zero budget should be empty")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc…" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("abc", 3); got != "abc" {
		t.Fatalf("Truncate no-op = %q", got)
	}
}
