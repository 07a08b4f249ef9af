package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"  // register decoder for illustration sizing
	_ "image/jpeg" // register decoder for illustration sizing
	_ "image/png"  // register decoder for illustration sizing
	"strconv"
	"strings"
	"time"

	"bookforge/internal/markdown"
)

// Page geometry in twentieths of a point; 5.5x8.5in trim.
const (
	docxPageWidth    = 7920
	docxPageHeight   = 12240
	docxMarginTop    = 1080
	docxMarginRight  = 720
	docxMarginBottom = 1080
	docxMarginLeft   = 1080
	docxTextWidth    = docxPageWidth - docxMarginLeft - docxMarginRight

	emuPerInch         = 914400
	docxImageMaxWidth  = 4.0
	docxImageMaxHeight = 3.0
	assumedDPI         = 96.0

	bulletNumID      = 1
	firstImageRelID  = 10
	tocInstruction   = ` TOC \h \z \t "ChapterTitle,1" `
	pageInstruction  = ` PAGE `
	wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	W       string   `xml:"xmlns:w,attr"`
	R       string   `xml:"xmlns:r,attr"`
	WP      string   `xml:"xmlns:wp,attr"`
	A       string   `xml:"xmlns:a,attr"`
	Pic     string   `xml:"xmlns:pic,attr"`
	Body    wBody    `xml:"w:body"`
}

type wBody struct {
	Paragraphs []wParagraph `xml:"w:p"`
	Section    wSection     `xml:"w:sectPr"`
}

type wParagraph struct {
	Props *wParagraphProps `xml:"w:pPr,omitempty"`
	Runs  []wRun           `xml:"w:r"`
}

type wParagraphProps struct {
	Style     *wVal   `xml:"w:pStyle,omitempty"`
	Numbering *wNumPr `xml:"w:numPr,omitempty"`
	Justify   *wVal   `xml:"w:jc,omitempty"`
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

type wNumPr struct {
	Level wVal `xml:"w:ilvl"`
	ID    wVal `xml:"w:numId"`
}

type wOn struct{}

type wRun struct {
	Props       *wRunProps `xml:"w:rPr,omitempty"`
	FieldChar   *wFldChar  `xml:"w:fldChar,omitempty"`
	Instruction *wText     `xml:"w:instrText,omitempty"`
	Break       *wBreak    `xml:"w:br,omitempty"`
	Text        *wText     `xml:"w:t,omitempty"`
	Drawing     *wDrawing  `xml:"w:drawing,omitempty"`
}

type wRunProps struct {
	Bold   *wOn `xml:"w:b,omitempty"`
	Italic *wOn `xml:"w:i,omitempty"`
}

type wText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Value string `xml:",chardata"`
}

type wFldChar struct {
	Type  string `xml:"w:fldCharType,attr"`
	Dirty string `xml:"w:dirty,attr,omitempty"`
}

type wBreak struct {
	Type string `xml:"w:type,attr"`
}

type wDrawing struct {
	Inner string `xml:",innerxml"`
}

type wSection struct {
	Footer    wFooterRef `xml:"w:footerReference"`
	PageSize  wPageSize  `xml:"w:pgSz"`
	Margins   wMargins   `xml:"w:pgMar"`
	TitlePage *wOn       `xml:"w:titlePg,omitempty"`
}

type wFooterRef struct {
	Type string `xml:"w:type,attr"`
	ID   string `xml:"r:id,attr"`
}

type wPageSize struct {
	Width  int `xml:"w:w,attr"`
	Height int `xml:"w:h,attr"`
}

type wMargins struct {
	Top    int `xml:"w:top,attr"`
	Right  int `xml:"w:right,attr"`
	Bottom int `xml:"w:bottom,attr"`
	Left   int `xml:"w:left,attr"`
	Header int `xml:"w:header,attr"`
	Footer int `xml:"w:footer,attr"`
}

type docxMedia struct {
	relID string
	name  string
	data  []byte
}

type docxBuilder struct {
	m             *Manuscript
	paragraphs    []wParagraph
	media         []docxMedia
	numberedLists []int // start value per numbered list; numId = index + 2
}

func renderDOCX(m *Manuscript) ([]byte, error) {
	b := &docxBuilder{m: m}
	b.titlePage()
	b.contents()
	for _, ch := range m.Chapters {
		b.chapter(ch)
	}

	document, err := xml.Marshal(wDocument{
		W:   wordprocessingNS,
		R:   "http://schemas.openxmlformats.org/officeDocument/2006/relationships",
		WP:  "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing",
		A:   "http://schemas.openxmlformats.org/drawingml/2006/main",
		Pic: "http://schemas.openxmlformats.org/drawingml/2006/picture",
		Body: wBody{
			Paragraphs: b.paragraphs,
			Section: wSection{
				Footer:    wFooterRef{Type: "default", ID: "rId4"},
				PageSize:  wPageSize{Width: docxPageWidth, Height: docxPageHeight},
				Margins:   wMargins{Top: docxMarginTop, Right: docxMarginRight, Bottom: docxMarginBottom, Left: docxMarginLeft, Header: 720, Footer: 540},
				TitlePage: &wOn{},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(docxContentTypes)},
		{"_rels/.rels", []byte(docxPackageRels)},
		{"docProps/core.xml", []byte(docxCoreProps(m))},
		{"word/document.xml", append([]byte(xml.Header), document...)},
		{"word/_rels/document.xml.rels", []byte(b.documentRels())},
		{"word/styles.xml", []byte(docxStyles)},
		{"word/numbering.xml", []byte(b.numbering())},
		{"word/settings.xml", []byte(docxSettings)},
		{"word/footer1.xml", []byte(docxFooter)},
	}
	for _, media := range b.media {
		parts = append(parts, struct {
			name string
			data []byte
		}{"word/media/" + media.name, media.data})
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: part.name, Method: zip.Deflate, Modified: zipTime(m.UpdatedAt)})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(part.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (b *docxBuilder) add(p wParagraph) {
	b.paragraphs = append(b.paragraphs, p)
}

func (b *docxBuilder) titlePage() {
	b.add(styled("Title", textRun(b.m.Title)))
	if b.m.Subtitle != "" {
		b.add(styled("Subtitle", textRun(b.m.Subtitle)))
	}
	if b.m.Description != "" {
		b.add(styled("Subtitle", textRun(b.m.Description)))
	}
	b.add(wParagraph{Runs: []wRun{{Break: &wBreak{Type: "page"}}}})
}

// contents emits a TOC field pre-filled with the chapter labels; Word
// refreshes it with page numbers on open.
func (b *docxBuilder) contents() {
	b.add(styled("TOCHeading", textRun(b.m.Labels.Contents)))
	last := len(b.m.Chapters) - 1
	for i, ch := range b.m.Chapters {
		var runs []wRun
		if i == 0 {
			runs = append(runs,
				wRun{FieldChar: &wFldChar{Type: "begin", Dirty: "true"}},
				wRun{Instruction: &wText{Space: "preserve", Value: tocInstruction}},
				wRun{FieldChar: &wFldChar{Type: "separate"}},
			)
		}
		runs = append(runs, textRun(ch.Label()))
		if i == last {
			runs = append(runs, wRun{FieldChar: &wFldChar{Type: "end"}})
		}
		b.add(styled("TOC1", runs...))
	}
}

func (b *docxBuilder) chapter(ch ManuscriptChapter) {
	title := []wRun{textRun(ch.Heading)}
	if len(ch.TitleRuns) > 0 {
		title[0].Text.Value += ": "
		title = append(title, runsFor(ch.TitleRuns)...)
	}
	b.add(styled("ChapterTitle", title...))

	if ch.Image != nil {
		if p, ok := b.image(ch); ok {
			b.add(p)
		}
	}

	numID := 0
	for i, block := range ch.Body.Blocks {
		switch block.Kind {
		case markdown.Heading:
			b.add(styled("Heading"+strconv.Itoa(block.Level), runsFor(block.Runs)...))
		case markdown.Bullet:
			b.add(listItem(bulletNumID, runsFor(block.Runs)))
		case markdown.Numbered:
			if i == 0 || ch.Body.Blocks[i-1].Kind != markdown.Numbered {
				b.numberedLists = append(b.numberedLists, block.Number)
				numID = len(b.numberedLists) + 1
			}
			b.add(listItem(numID, runsFor(block.Runs)))
		case markdown.Paragraph:
			b.add(wParagraph{Runs: runsFor(block.Runs)})
		}
	}
}

func (b *docxBuilder) image(ch ManuscriptChapter) (wParagraph, bool) {
	ext := ch.Image.Extension()
	if ext == "webp" {
		return wParagraph{}, false
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(ch.Image.Data))
	if err != nil || cfg.Width == 0 || cfg.Height == 0 {
		return wParagraph{}, false
	}
	width, height := float64(cfg.Width)/assumedDPI, float64(cfg.Height)/assumedDPI
	scale := min(docxImageMaxWidth/width, docxImageMaxHeight/height, 1)
	cx, cy := int64(width*scale*emuPerInch), int64(height*scale*emuPerInch)

	index := len(b.media) + 1
	media := docxMedia{
		relID: "rId" + strconv.Itoa(firstImageRelID+index-1),
		name:  fmt.Sprintf("image%d.%s", index, ext),
		data:  ch.Image.Data,
	}
	b.media = append(b.media, media)

	drawing := fmt.Sprintf(docxInlineImage, cx, cy, index, index, index, media.name, media.relID, cx, cy)
	return wParagraph{
		Props: &wParagraphProps{Justify: &wVal{Val: "center"}},
		Runs:  []wRun{{Drawing: &wDrawing{Inner: drawing}}},
	}, true
}

func (b *docxBuilder) documentRels() string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	sb.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>`)
	sb.WriteString(`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/numbering" Target="numbering.xml"/>`)
	sb.WriteString(`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/settings" Target="settings.xml"/>`)
	sb.WriteString(`<Relationship Id="rId4" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer" Target="footer1.xml"/>`)
	for _, media := range b.media {
		fmt.Fprintf(&sb, `<Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>`, media.relID, media.name)
	}
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

// numbering declares one bullet list shared by every bulleted run of items
// and one decimal instance per numbered list so each restarts at its own
// first ordinal.
func (b *docxBuilder) numbering() string {
	var sb strings.Builder
	sb.WriteString(xml.Header)
	sb.WriteString(`<w:numbering xmlns:w="` + wordprocessingNS + `">`)
	sb.WriteString(`<w:abstractNum w:abstractNumId="0"><w:multiLevelType w:val="singleLevel"/>` +
		`<w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="bullet"/><w:lvlText w:val="•"/><w:lvlJc w:val="left"/>` +
		`<w:pPr><w:ind w:left="720" w:hanging="360"/></w:pPr></w:lvl></w:abstractNum>`)
	sb.WriteString(`<w:abstractNum w:abstractNumId="1"><w:multiLevelType w:val="singleLevel"/>` +
		`<w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="decimal"/><w:lvlText w:val="%1."/><w:lvlJc w:val="left"/>` +
		`<w:pPr><w:ind w:left="720" w:hanging="360"/></w:pPr></w:lvl></w:abstractNum>`)
	fmt.Fprintf(&sb, `<w:num w:numId="%d"><w:abstractNumId w:val="0"/></w:num>`, bulletNumID)
	for i, start := range b.numberedLists {
		fmt.Fprintf(&sb, `<w:num w:numId="%d"><w:abstractNumId w:val="1"/>`+
			`<w:lvlOverride w:ilvl="0"><w:startOverride w:val="%d"/></w:lvlOverride></w:num>`, i+2, max(start, 1))
	}
	sb.WriteString(`</w:numbering>`)
	return sb.String()
}

func styled(style string, runs ...wRun) wParagraph {
	return wParagraph{Props: &wParagraphProps{Style: &wVal{Val: style}}, Runs: runs}
}

func listItem(numID int, runs []wRun) wParagraph {
	return wParagraph{
		Props: &wParagraphProps{
			Style:     &wVal{Val: "ListParagraph"},
			Numbering: &wNumPr{Level: wVal{Val: "0"}, ID: wVal{Val: strconv.Itoa(numID)}},
		},
		Runs: runs,
	}
}

func textRun(text string) wRun {
	return wRun{Text: &wText{Space: "preserve", Value: text}}
}

func runsFor(runs []markdown.Run) []wRun {
	out := make([]wRun, 0, len(runs))
	for _, r := range runs {
		run := textRun(r.Text)
		if r.Bold || r.Italic {
			run.Props = &wRunProps{}
			if r.Bold {
				run.Props.Bold = &wOn{}
			}
			if r.Italic {
				run.Props.Italic = &wOn{}
			}
		}
		out = append(out, run)
	}
	return out
}

func docxCoreProps(m *Manuscript) string {
	created := zipTime(m.UpdatedAt).Format(time.RFC3339)
	return xml.Header +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"` +
		` xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/"` +
		` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + escapeXML(m.Title) + `</dc:title>` +
		`<dc:subject>` + escapeXML(m.Subtitle) + `</dc:subject>` +
		`<dc:description>` + escapeXML(m.Description) + `</dc:description>` +
		`<dc:language>` + escapeXML(m.Language) + `</dc:language>` +
		`<cp:keywords>` + escapeXML(m.Category) + `</cp:keywords>` +
		`<dc:creator>bookforge</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + created + `</dcterms:created>` +
		`</cp:coreProperties>`
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// zipTime keeps archives reproducible for an unchanged book.
func zipTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return t.UTC().Truncate(time.Second)
}

const docxInlineImage = `<wp:inline distT="0" distB="0" distL="0" distR="0">` +
	`<wp:extent cx="%d" cy="%d"/><wp:docPr id="%d" name="Picture %d"/>` +
	`<wp:cNvGraphicFramePr><a:graphicFrameLocks noChangeAspect="1"/></wp:cNvGraphicFramePr>` +
	`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">` +
	`<pic:pic><pic:nvPicPr><pic:cNvPr id="%d" name="%s"/><pic:cNvPicPr/></pic:nvPicPr>` +
	`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>` +
	`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>` +
	`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr></pic:pic>` +
	`</a:graphicData></a:graphic></wp:inline>`

const docxContentTypes = xml.Header +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Default Extension="png" ContentType="image/png"/>` +
	`<Default Extension="jpeg" ContentType="image/jpeg"/>` +
	`<Default Extension="gif" ContentType="image/gif"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/word/numbering.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.numbering+xml"/>` +
	`<Override PartName="/word/settings.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.settings+xml"/>` +
	`<Override PartName="/word/footer1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const docxPackageRels = xml.Header +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const docxSettings = xml.Header +
	`<w:settings xmlns:w="` + wordprocessingNS + `"><w:updateFields w:val="true"/></w:settings>`

const docxFooter = xml.Header +
	`<w:ftr xmlns:w="` + wordprocessingNS + `"><w:p><w:pPr><w:jc w:val="center"/></w:pPr>` +
	`<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
	`<w:r><w:instrText xml:space="preserve">` + pageInstruction + `</w:instrText></w:r>` +
	`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
	`<w:r><w:t>1</w:t></w:r>` +
	`<w:r><w:fldChar w:fldCharType="end"/></w:r>` +
	`</w:p></w:ftr>`

var docxStyles = xml.Header +
	`<w:styles xmlns:w="` + wordprocessingNS + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Georgia" w:hAnsi="Georgia" w:cs="Georgia"/>` +
	`<w:sz w:val="22"/><w:szCs w:val="22"/></w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="120" w:line="320" w:lineRule="auto"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/>` +
	`<w:pPr><w:jc w:val="both"/></w:pPr></w:style>` +
	paragraphStyle("Title", "Title", `<w:spacing w:before="2880" w:after="240"/><w:jc w:val="center"/>`, `<w:b/><w:sz w:val="48"/>`) +
	paragraphStyle("Subtitle", "Subtitle", `<w:jc w:val="center"/>`, `<w:color w:val="666666"/><w:sz w:val="28"/>`) +
	paragraphStyle("ChapterTitle", "Chapter Title", `<w:keepNext/><w:pageBreakBefore/><w:spacing w:after="360"/><w:jc w:val="left"/><w:outlineLvl w:val="0"/>`, `<w:b/><w:sz w:val="36"/>`) +
	headingStyles() +
	paragraphStyle("TOCHeading", "TOC Heading", `<w:spacing w:after="240"/>`, `<w:b/><w:sz w:val="36"/>`) +
	paragraphStyle("TOC1", "toc 1", `<w:tabs><w:tab w:val="right" w:leader="dot" w:pos="`+strconv.Itoa(docxTextWidth)+`"/></w:tabs><w:spacing w:after="60"/><w:jc w:val="left"/>`, ``) +
	paragraphStyle("ListParagraph", "List Paragraph", `<w:spacing w:after="60"/><w:ind w:left="720"/><w:jc w:val="left"/>`, ``) +
	`</w:styles>`

func headingStyles() string {
	sizes := []int{30, 26, 24, 22}
	var sb strings.Builder
	for level := 1; level <= markdown.MaxHeadingLevel; level++ {
		id := "Heading" + strconv.Itoa(level)
		pPr := fmt.Sprintf(`<w:keepNext/><w:spacing w:before="240" w:after="120"/><w:jc w:val="left"/><w:outlineLvl w:val="%d"/>`, level)
		sb.WriteString(paragraphStyle(id, "heading "+strconv.Itoa(level), pPr, fmt.Sprintf(`<w:b/><w:sz w:val="%d"/>`, sizes[level-1])))
	}
	return sb.String()
}

func paragraphStyle(id, name, pPr, rPr string) string {
	return `<w:style w:type="paragraph" w:styleId="` + id + `"><w:name w:val="` + name + `"/>` +
		`<w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
		`<w:pPr>` + pPr + `</w:pPr><w:rPr>` + rPr + `</w:rPr></w:style>`
}
