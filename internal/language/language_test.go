package language

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"", Default, false},
		{"fr", "fr", false},
		{"EN", "en", false},
		{"fr-ca", "fr-CA", false},
		{"pt-br", "pt-BR", false},
		{"%%", "", true},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Normalize(%q) expected error, got %q", tt.input, got)
			}
			continue
		}
		if err != nil || got != tt.expected {
			t.Errorf("Normalize(%q) = %q, %v; want %q", tt.input, got, err, tt.expected)
		}
	}
}

func TestLabelsFor(t *testing.T) {
	tests := []struct {
		code     string
		chapter  string
		contents string
	}{
		{"fr", "Chapitre", "Table des matières"},
		{"fr-CA", "Chapitre", "Table des matières"},
		{"en", "Chapter", "Table of Contents"},
		{"en-GB", "Chapter", "Table of Contents"},
		{"de", "Kapitel", "Inhaltsverzeichnis"},
		{"ja", "Chapter", "Table of Contents"},
		{"garbage!!", "Chapter", "Table of Contents"},
	}
	for _, tt := range tests {
		labels := LabelsFor(tt.code)
		if labels.Chapter != tt.chapter || labels.Contents != tt.contents {
			t.Errorf("LabelsFor(%q) = %+v, want %q/%q", tt.code, labels, tt.chapter, tt.contents)
		}
	}
}

func TestChapterHeading(t *testing.T) {
	if got := ChapterHeading("fr", 3); got != "Chapitre 3" {
		t.Fatalf("ChapterHeading fr = %q", got)
	}
	if got := ChapterHeading("en", 12); got != "Chapter 12" {
		t.Fatalf("ChapterHeading en = %q", got)
	}
}

func TestDisplayNameAndBase(t *testing.T) {
	if got := DisplayName("fr-CA"); got != "French" {
		t.Fatalf("DisplayName(fr-CA) = %q", got)
	}
	if got := DisplayName("ja"); got != "ja" {
		t.Fatalf("DisplayName(ja) = %q, want passthrough", got)
	}
	if got := Base("en-US"); got != "en" {
		t.Fatalf("Base(en-US) = %q", got)
	}
	if got := Base("%%"); got != "" {
		t.Fatalf("Base(invalid) = %q, want empty", got)
	}
}

func TestCasing(t *testing.T) {
	if got := Lower("fr", "ÉTÉ Jardin"); got != "été jardin" {
		t.Fatalf("Lower = %q", got)
	}
	if got := Title("en", "the quiet garden"); got != "The Quiet Garden" {
		t.Fatalf("Title = %q", got)
	}
}
