package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"bookforge/internal/markdown"
)

// Page geometry in inches.
const (
	pdfPageWidth    = 5.5
	pdfPageHeight   = 8.5
	pdfMarginLeft   = 0.75
	pdfMarginRight  = 0.5
	pdfMarginTop    = 0.75
	pdfMarginBottom = 0.75
	pdfContentWidth = pdfPageWidth - pdfMarginLeft - pdfMarginRight

	pdfImageMaxWidth  = 3.5
	pdfImageMaxHeight = 2.5

	pdfFont     = "Times"
	pdfBodySize = 11.0
	pdfLeading  = 16.0 / 72
	pdfListGap  = 0.25
)

// renderPDF lays the manuscript out twice: the first pass discovers the page
// each chapter starts on, the second prints those numbers into the table of
// contents. Contents entries are single lines, so both passes paginate alike.
// It returns the document and the chapter start pages.
func renderPDF(m *Manuscript, compress bool) ([]byte, []int, error) {
	_, pages, err := layoutPDF(m, nil, compress)
	if err != nil {
		return nil, nil, err
	}
	return layoutPDF(m, pages, compress)
}

type pdfWriter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func layoutPDF(m *Manuscript, tocPages []int, compress bool) ([]byte, []int, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           gofpdf.SizeType{Wd: pdfPageWidth, Ht: pdfPageHeight},
	})
	pdf.SetCompression(compress)
	pdf.SetMargins(pdfMarginLeft, pdfMarginTop, pdfMarginRight)
	pdf.SetAutoPageBreak(true, pdfMarginBottom)
	pdf.SetTitle(m.Title, true)
	pdf.SetSubject(m.Description, true)
	pdf.SetCreator("bookforge", true)
	if !m.UpdatedAt.IsZero() {
		pdf.SetCreationDate(m.UpdatedAt)
	}
	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFooterFunc(func() {
		if pdf.PageNo() <= 1 {
			return
		}
		pdf.SetY(-0.5)
		pdf.SetFont(pdfFont, "", 9)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 0.2, strconv.Itoa(pdf.PageNo()), "", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})

	w.titlePage(m)
	links := w.contents(m, tocPages)

	pages := make([]int, len(m.Chapters))
	for i, ch := range m.Chapters {
		pdf.AddPage()
		pages[i] = pdf.PageNo()
		pdf.SetLink(links[i], 0, -1)
		pdf.Bookmark(w.tr(ch.Label()), 0, -1)
		w.chapter(ch)
	}

	if err := pdf.Error(); err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), pages, nil
}

func (w *pdfWriter) titlePage(m *Manuscript) {
	pdf := w.pdf
	pdf.AddPage()
	pdf.SetY(2.5)
	pdf.SetFont(pdfFont, "B", 24)
	pdf.MultiCell(0, 0.45, w.tr(m.Title), "", "C", false)
	if m.Subtitle != "" {
		pdf.Ln(0.15)
		pdf.SetFont(pdfFont, "", 14)
		pdf.SetTextColor(100, 100, 100)
		pdf.MultiCell(0, 0.3, w.tr(m.Subtitle), "", "C", false)
		pdf.SetTextColor(0, 0, 0)
	}
}

func (w *pdfWriter) contents(m *Manuscript, tocPages []int) []int {
	pdf := w.pdf
	pdf.AddPage()
	pdf.SetFont(pdfFont, "B", 18)
	pdf.CellFormat(0, 0.4, w.tr(m.Labels.Contents), "", 1, "L", false, 0, "")
	pdf.Ln(0.2)

	const numberWidth = 0.4
	labelWidth := pdfContentWidth - numberWidth
	links := make([]int, len(m.Chapters))
	pdf.SetFont(pdfFont, "", pdfBodySize)
	for i, ch := range m.Chapters {
		links[i] = pdf.AddLink()
		page := ""
		if i < len(tocPages) {
			page = strconv.Itoa(tocPages[i])
		}
		label := w.fit(w.tr(ch.Label()), labelWidth-0.1)
		pdf.CellFormat(labelWidth, pdfLeading+0.04, label, "", 0, "L", false, links[i], "")
		pdf.CellFormat(numberWidth, pdfLeading+0.04, page, "", 1, "R", false, links[i], "")
	}
	return links
}

// fit truncates s with an ellipsis so it renders within width. s is already
// translated to the single-byte core font encoding.
func (w *pdfWriter) fit(s string, width float64) string {
	if w.pdf.GetStringWidth(s) <= width {
		return s
	}
	ellipsis := w.tr("…")
	for len(s) > 0 && w.pdf.GetStringWidth(s+ellipsis) > width {
		s = s[:len(s)-1]
	}
	return s + ellipsis
}

func (w *pdfWriter) chapter(ch ManuscriptChapter) {
	pdf := w.pdf
	pdf.SetFont(pdfFont, "", pdfBodySize)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 0.25, w.tr(ch.Heading), "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	if ch.Title != "" {
		pdf.SetFont(pdfFont, "B", 18)
		pdf.MultiCell(0, 0.33, w.tr(ch.Title), "", "L", false)
	}
	pdf.Ln(0.2)

	if ch.Image != nil {
		w.image(ch)
	}

	next := 0
	for i, b := range ch.Body.Blocks {
		switch b.Kind {
		case markdown.Heading:
			size := headingSize(b.Level)
			pdf.Ln(0.08)
			w.runs(b.Runs, "B", size, size*1.35/72)
			pdf.Ln(size*1.35/72 + 0.04)
		case markdown.Bullet:
			w.listItem(w.tr("•"), b.Runs)
		case markdown.Numbered:
			if i == 0 || ch.Body.Blocks[i-1].Kind != markdown.Numbered {
				next = b.Number
			}
			w.listItem(strconv.Itoa(next)+".", b.Runs)
			next++
		case markdown.Paragraph:
			w.runs(b.Runs, "", pdfBodySize, pdfLeading)
			pdf.Ln(pdfLeading + 0.06)
		}
	}
}

func (w *pdfWriter) listItem(marker string, runs []markdown.Run) {
	pdf := w.pdf
	pdf.SetFont(pdfFont, "", pdfBodySize)
	pdf.SetX(pdfMarginLeft + 0.05)
	pdf.Write(pdfLeading, marker)
	pdf.SetLeftMargin(pdfMarginLeft + pdfListGap)
	pdf.SetX(pdfMarginLeft + pdfListGap)
	w.runs(runs, "", pdfBodySize, pdfLeading)
	pdf.Ln(pdfLeading + 0.03)
	pdf.SetLeftMargin(pdfMarginLeft)
}

func (w *pdfWriter) runs(runs []markdown.Run, base string, size, leading float64) {
	for _, r := range runs {
		w.pdf.SetFont(pdfFont, fontStyle(base, r), size)
		w.pdf.Write(leading, w.tr(r.Text))
	}
}

func (w *pdfWriter) image(ch ManuscriptChapter) {
	pdf := w.pdf
	imageType := pdfImageType(ch.Image.ContentType)
	if imageType == "" {
		return
	}
	name := fmt.Sprintf("chapter-%d", ch.Number)
	opts := gofpdf.ImageOptions{ImageType: imageType}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(ch.Image.Data))
	if pdf.Err() || info == nil {
		// Undecodable illustrations are left out rather than failing the book.
		pdf.ClearError()
		return
	}
	width, height := info.Width(), info.Height()
	if width <= 0 || height <= 0 {
		return
	}
	scale := min(pdfImageMaxWidth/width, pdfImageMaxHeight/height)
	width, height = width*scale, height*scale

	if pdf.GetY()+height > pdfPageHeight-pdfMarginBottom {
		pdf.AddPage()
	}
	y := pdf.GetY()
	x := pdfMarginLeft + (pdfContentWidth-width)/2
	pdf.ImageOptions(name, x, y, width, height, false, opts, 0, "")
	pdf.SetY(y + height + 0.2)
}

func fontStyle(base string, r markdown.Run) string {
	bold := base == "B" || r.Bold
	switch {
	case bold && r.Italic:
		return "BI"
	case bold:
		return "B"
	case r.Italic:
		return "I"
	}
	return ""
}

func headingSize(level int) float64 {
	switch level {
	case 1:
		return 15
	case 2:
		return 13
	case 3:
		return 12
	}
	return pdfBodySize
}

func pdfImageType(contentType string) string {
	switch contentType {
	case "image/png":
		return "PNG"
	case "image/jpeg":
		return "JPG"
	case "image/gif":
		return "GIF"
	}
	return ""
}
