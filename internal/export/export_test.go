package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bookforge/internal/logging"
	"bookforge/internal/services"
	"bookforge/internal/store"
	"bookforge/internal/testsupport"
	"bookforge/internal/textutil"
)

const sampleChapter = `## Getting Started

Some **bold** and *italic* text.

- first
- second

3. three
4. four

### Deeper

***both***`

type fixture struct {
	engine *Engine
	store  *store.Store
	book   *store.Book
}

func newFixture(t *testing.T, chapters int) *fixture {
	t.Helper()
	ctx := context.Background()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	book := testsupport.NewBookWithOutline(t, st, 3, true)

	if chapters > 0 {
		var err error
		book, err = st.Update(ctx, book.ID, func(b *store.Book) error {
			for _, entry := range b.Outline[:chapters] {
				b.PutChapter(store.Chapter{Number: entry.Number, Title: entry.Title, Content: sampleChapter})
			}
			return nil
		})
		if err != nil {
			t.Fatalf("store chapters: %v", err)
		}
		book, err = st.PutImage(ctx, store.Image{
			BookID:      book.ID,
			Chapter:     1,
			Data:        testsupport.PNG("one"),
			ContentType: "image/png",
			Source:      store.ImageSourcePlaceholder,
		})
		if err != nil {
			t.Fatalf("PutImage: %v", err)
		}
	}
	return &fixture{
		engine: NewEngine(cfg, st, logging.NewNop()),
		store:  st,
		book:   book,
	}
}

func (f *fixture) manuscript(t *testing.T) *Manuscript {
	t.Helper()
	m, err := newManuscript(context.Background(), f.store, f.book)
	if err != nil {
		t.Fatalf("newManuscript: %v", err)
	}
	return m
}

func TestExportRejectsBookWithoutChapters(t *testing.T) {
	f := newFixture(t, 0)
	for _, format := range Formats {
		artifact, err := f.engine.Export(context.Background(), f.book.ID, string(format))
		if !errors.Is(err, services.ErrExport) {
			t.Fatalf("%s: error = %v, want export error", format, err)
		}
		if artifact != nil {
			t.Fatalf("%s: expected no artifact", format)
		}
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	f := newFixture(t, 1)
	if _, err := f.engine.Export(context.Background(), f.book.ID, "txt"); !errors.Is(err, services.ErrExport) {
		t.Fatalf("error = %v, want export error", err)
	}
	if _, err := ParseFormat(" EPUB "); err != nil {
		t.Fatalf("ParseFormat should accept mixed case: %v", err)
	}
}

func TestExportUnknownBookIsNotFound(t *testing.T) {
	f := newFixture(t, 1)
	if _, err := f.engine.Export(context.Background(), "missing", "pdf"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}

func TestExportCachesUntilBookChanges(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	first, err := f.engine.Export(ctx, f.book.ID, "pdf")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if first.Cached || first.Path == "" || first.ContentType != "application/pdf" {
		t.Fatalf("unexpected first artifact: %+v", first)
	}
	if _, err := os.Stat(first.Path); err != nil {
		t.Fatalf("artifact file missing: %v", err)
	}

	second, err := f.engine.Export(ctx, f.book.ID, "pdf")
	if err != nil {
		t.Fatalf("Export again: %v", err)
	}
	if !second.Cached || !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("second export should be served from cache")
	}

	time.Sleep(2 * time.Millisecond)
	if _, err := f.store.Update(ctx, f.book.ID, func(b *store.Book) error {
		b.PutChapter(store.Chapter{Number: 2, Title: "Chapter title 2", Content: "Rewritten."})
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	third, err := f.engine.Export(ctx, f.book.ID, "pdf")
	if err != nil {
		t.Fatalf("Export after change: %v", err)
	}
	if third.Cached {
		t.Fatal("a changed book must be re-rendered")
	}
}

func TestPurgeRemovesArtifacts(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	artifact, err := f.engine.Export(ctx, f.book.ID, "docx")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	// Another book whose id shares the first eight characters.
	sibling := filepath.Join(filepath.Dir(artifact.Path),
		textutil.ExportFileName("Another Title", f.book.ID[:8]+"-other", "docx"))
	if err := os.WriteFile(sibling, []byte("other"), 0o644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	if err := f.engine.Purge(f.book.ID, f.book.Title); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := os.Stat(artifact.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact should be removed, stat err = %v", err)
	}
	if _, err := os.Stat(sibling); err != nil {
		t.Fatalf("another book's export was removed: %v", err)
	}
	again, err := f.engine.Export(ctx, f.book.ID, "docx")
	if err != nil {
		t.Fatalf("Export after purge: %v", err)
	}
	if again.Cached {
		t.Fatal("purged artifact must not be served from cache")
	}
}

// deletingSource deletes the book while its manuscript is being assembled.
type deletingSource struct {
	*store.Store
	once sync.Once
}

func (d *deletingSource) GetImage(ctx context.Context, bookID string, chapter int) (*store.Image, error) {
	d.once.Do(func() {
		_ = d.Store.DeleteBook(ctx, bookID)
	})
	return d.Store.GetImage(ctx, bookID, chapter)
}

func TestExportDiscardsRenderOfDeletedBook(t *testing.T) {
	f := newFixture(t, 1)
	cfg := testsupport.NewConfig(t)
	engine := NewEngine(cfg, &deletingSource{Store: f.store}, logging.NewNop())

	artifact, err := engine.Export(context.Background(), f.book.ID, "epub")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
	if artifact != nil {
		t.Fatal("expected no artifact for a deleted book")
	}
	if n := engine.cache.ItemCount(); n != 0 {
		t.Fatalf("cache holds %d artifacts for a deleted book", n)
	}
	name := textutil.ExportFileName(f.book.Title, f.book.ID, "epub")
	if _, err := os.Stat(filepath.Join(cfg.Paths.ExportDir, name)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("export file should not survive, stat err = %v", err)
	}
}

func TestRenderPDFPaginatesChapters(t *testing.T) {
	f := newFixture(t, 3)
	data, pages, err := renderPDF(f.manuscript(t), false)
	if err != nil {
		t.Fatalf("renderPDF: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("not a PDF: %q", data[:min(len(data), 16)])
	}
	if len(pages) != 3 || pages[0] != 3 {
		t.Fatalf("chapter pages = %v, want first chapter after title and contents pages", pages)
	}
	for i := 1; i < len(pages); i++ {
		if pages[i] <= pages[i-1] {
			t.Fatalf("chapter pages not increasing: %v", pages)
		}
	}
	for _, want := range []string{"Chapter title 1", "Chapter title 3", "Getting Started", "Times-Bold", "Times-Italic", "Times-BoldItalic"} {
		if !bytes.Contains(data, []byte(want)) {
			t.Fatalf("PDF missing %q", want)
		}
	}
}

func TestRenderPDFRunsKeepOrderAndFonts(t *testing.T) {
	f := newFixture(t, 1)
	data, _, err := renderPDF(f.manuscript(t), false)
	if err != nil {
		t.Fatalf("renderPDF: %v", err)
	}
	runs := pdfTextRuns(t, data)

	want := []pdfTextRun{
		{Text: "Getting Started", Font: "Times-Bold", Size: "13.00"},
		{Text: "Some", Font: "Times-Roman", Size: "11.00"},
		{Text: "bold", Font: "Times-Bold", Size: "11.00"},
		{Text: "and", Font: "Times-Roman", Size: "11.00"},
		{Text: "italic", Font: "Times-Italic", Size: "11.00"},
		{Text: "text.", Font: "Times-Roman", Size: "11.00"},
		{Text: "first", Font: "Times-Roman", Size: "11.00"},
		{Text: "second", Font: "Times-Roman", Size: "11.00"},
		{Text: "3.", Font: "Times-Roman", Size: "11.00"},
		{Text: "three", Font: "Times-Roman", Size: "11.00"},
		{Text: "four", Font: "Times-Roman", Size: "11.00"},
		{Text: "Deeper", Font: "Times-Bold", Size: "12.00"},
		{Text: "both", Font: "Times-BoldItalic", Size: "11.00"},
	}
	pos := 0
	for _, w := range want {
		found := false
		for ; pos < len(runs); pos++ {
			if strings.Contains(runs[pos].Text, w.Text) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("run %q missing or out of order; runs: %+v", w.Text, runs)
		}
		got := runs[pos]
		if got.Font != w.Font || got.Size != w.Size {
			t.Fatalf("run %q drawn in %s %s, want %s %s", w.Text, got.Font, got.Size, w.Font, w.Size)
		}
		pos++
	}
}

func TestRenderDOCXStructure(t *testing.T) {
	f := newFixture(t, 2)
	data, err := renderDOCX(f.manuscript(t))
	if err != nil {
		t.Fatalf("renderDOCX: %v", err)
	}
	parts := unzip(t, data)
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/styles.xml", "word/numbering.xml", "word/settings.xml", "word/media/image1.png"} {
		if _, ok := parts[name]; !ok {
			t.Fatalf("missing part %s", name)
		}
	}

	document := parts["word/document.xml"]
	assertWellFormed(t, document)
	if got := fieldInstructions(t, document); len(got) != 1 || strings.TrimSpace(got[0]) != `TOC \h \z \t "ChapterTitle,1"` {
		t.Fatalf("document fields = %q, want one chapter TOC", got)
	}
	for _, want := range []string{
		`w:val="ChapterTitle"`,
		`w:val="Heading2"`,
		`w:val="Heading3"`,
		`w:val="ListParagraph"`,
		`<w:b></w:b>`,
		`<w:i></w:i>`,
		`r:embed="rId10"`,
		`Chapter 1: `,
	} {
		if !strings.Contains(document, want) {
			t.Fatalf("document.xml missing %q", want)
		}
	}
	if strings.Index(document, ">first<") > strings.Index(document, ">second<") {
		t.Fatal("list items out of order")
	}
	if strings.Count(document, `w:val="ChapterTitle"`) != 2 {
		t.Fatalf("expected one chapter title per chapter")
	}

	if !strings.Contains(parts["word/footer1.xml"], " PAGE ") {
		t.Fatal("footer should carry a PAGE field")
	}
	numbering := parts["word/numbering.xml"]
	if !strings.Contains(numbering, `<w:startOverride w:val="3"/>`) {
		t.Fatalf("numbered list should restart at its first ordinal:\n%s", numbering)
	}
	if !strings.Contains(parts["word/_rels/document.xml.rels"], `Target="media/image1.png"`) {
		t.Fatal("image relationship missing")
	}
}

func TestRenderEPUBStructure(t *testing.T) {
	f := newFixture(t, 2)
	data, err := renderEPUB(f.manuscript(t))
	if err != nil {
		t.Fatalf("renderEPUB: %v", err)
	}
	parts := unzip(t, data)

	chapter := partWithSuffix(t, parts, "chapter_1.xhtml")
	for _, want := range []string{
		"<h2>Getting Started</h2>",
		"<strong>bold</strong>",
		"<em>italic</em>",
		"<strong><em>both</em></strong>",
		"<li>first</li><li>second</li>",
		`<ol start="3"><li>three</li><li>four</li></ol>`,
		"<h3>Deeper</h3>",
		"chapter_1.png",
	} {
		if !strings.Contains(chapter, want) {
			t.Fatalf("chapter_1.xhtml missing %q:\n%s", want, chapter)
		}
	}
	if strings.Contains(partWithSuffix(t, parts, "chapter_2.xhtml"), "<img") {
		t.Fatal("chapter 2 has no illustration")
	}
	partWithSuffix(t, parts, "title.xhtml")
	nav := partWithSuffix(t, parts, "nav.xhtml")
	if strings.Index(nav, "Chapter 1: Chapter title 1") > strings.Index(nav, "Chapter 2: Chapter title 2") ||
		!strings.Contains(nav, "Chapter 2: Chapter title 2") {
		t.Fatalf("navigation document should list chapters in order:\n%s", nav)
	}
}

func TestRenderRejectsEmptyManuscript(t *testing.T) {
	if _, err := Render(&Manuscript{Title: "Empty"}, FormatEPUB); !errors.Is(err, services.ErrExport) {
		t.Fatalf("error = %v, want export error", err)
	}
}

// fieldInstructions decodes every w:instrText value in a WordprocessingML part.
type pdfTextRun struct {
	Text string
	Font string
	Size string
}

var (
	pdfFontObject   = regexp.MustCompile(`(\d+) 0 obj\n<</Type /Font\n/BaseFont /(\S+)\n`)
	pdfFontResource = regexp.MustCompile(`/F([0-9a-f]+) (\d+) 0 R`)
	pdfContentOp    = regexp.MustCompile(`/F([0-9a-f]+) ([\d.]+) Tf|\(((?:\\.|[^\\)])*)\) ?Tj`)
)

// pdfTextRuns reads an uncompressed PDF and returns every shown string with
// the base font and point size selected when it was drawn.
func pdfTextRuns(t *testing.T, data []byte) []pdfTextRun {
	t.Helper()
	baseFonts := map[string]string{}
	for _, m := range pdfFontObject.FindAllSubmatch(data, -1) {
		baseFonts[string(m[1])] = string(m[2])
	}
	fonts := map[string]string{}
	for _, m := range pdfFontResource.FindAllSubmatch(data, -1) {
		if name, ok := baseFonts[string(m[2])]; ok {
			fonts[string(m[1])] = name
		}
	}
	if len(fonts) == 0 {
		t.Fatal("no font resources found; is the PDF compressed?")
	}

	unescape := strings.NewReplacer(`\\`, `\`, `\(`, "(", `\)`, ")", `\r`, "\r")
	var runs []pdfTextRun
	var font, size string
	for _, m := range pdfContentOp.FindAllSubmatch(data, -1) {
		if m[1] != nil {
			font, size = fonts[string(m[1])], string(m[2])
			continue
		}
		runs = append(runs, pdfTextRun{Text: unescape.Replace(string(m[3])), Font: font, Size: size})
	}
	return runs
}

func fieldInstructions(t *testing.T, part string) []string {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(part))
	var out []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("decode part: %v", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "instrText" {
			continue
		}
		var value string
		if err := dec.DecodeElement(&value, &start); err != nil {
			t.Fatalf("decode instrText: %v", err)
		}
		out = append(out, value)
	}
}

func unzip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	parts := make(map[string]string, len(zr.File))
	for _, file := range zr.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open %s: %v", file.Name, err)
		}
		content, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", file.Name, err)
		}
		parts[file.Name] = string(content)
	}
	return parts
}

func partWithSuffix(t *testing.T, parts map[string]string, suffix string) string {
	t.Helper()
	for name, content := range parts {
		if strings.HasSuffix(name, suffix) {
			return content
		}
	}
	t.Fatalf("no part ending in %s", suffix)
	return ""
}

func assertWellFormed(t *testing.T, document string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(document))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("document.xml is not well-formed: %v", err)
		}
	}
}
