package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies a block type.
type Kind int

const (
	Paragraph Kind = iota
	Heading
	Bullet
	Numbered
	Blank
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Heading:
		return "heading"
	case Bullet:
		return "bullet"
	case Numbered:
		return "numbered"
	case Blank:
		return "blank"
	default:
		return "paragraph"
	}
}

// MaxHeadingLevel is the deepest heading level kept; deeper headings clamp to it.
const MaxHeadingLevel = 4

// Run is a span of text sharing one emphasis style.
type Run struct {
	Text   string
	Bold   bool
	Italic bool
}

// Block is one line-level element.
type Block struct {
	Kind Kind
	// Level is the heading level (1-4) for Heading blocks.
	Level int
	// Number is the source ordinal for Numbered blocks.
	Number int
	Runs   []Run
}

// Plain returns the block text without emphasis markers.
func (b Block) Plain() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Document is a parsed markdown body.
type Document struct {
	Blocks []Block
}

// Headings returns heading blocks in document order.
func (d Document) Headings() []Block {
	var out []Block
	for _, b := range d.Blocks {
		if b.Kind == Heading {
			out = append(out, b)
		}
	}
	return out
}

var numberedPattern = regexp.MustCompile(`^(\d+)[.)]\s+(.*)$`)

// Parse splits src into blocks line by line. Runs of blank lines collapse into
// one Blank block; leading and trailing blanks are dropped.
func Parse(src string) Document {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")

	doc := Document{}
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			if n := len(doc.Blocks); n > 0 && doc.Blocks[n-1].Kind != Blank {
				doc.Blocks = append(doc.Blocks, Block{Kind: Blank})
			}
			continue
		}
		doc.Blocks = append(doc.Blocks, parseLine(line))
	}
	if n := len(doc.Blocks); n > 0 && doc.Blocks[n-1].Kind == Blank {
		doc.Blocks = doc.Blocks[:n-1]
	}
	return doc
}

func parseLine(line string) Block {
	if level, text, ok := headingLine(line); ok {
		return Block{Kind: Heading, Level: level, Runs: ParseInline(text)}
	}
	for _, marker := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, marker) {
			return Block{Kind: Bullet, Runs: ParseInline(strings.TrimSpace(line[len(marker):]))}
		}
	}
	if m := numberedPattern.FindStringSubmatch(line); m != nil {
		number, err := strconv.Atoi(m[1])
		if err == nil {
			return Block{Kind: Numbered, Number: number, Runs: ParseInline(strings.TrimSpace(m[2]))}
		}
	}
	return Block{Kind: Paragraph, Runs: ParseInline(line)}
}

func headingLine(line string) (int, string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level >= len(line) || line[level] != ' ' {
		return 0, "", false
	}
	text := strings.TrimSpace(line[level:])
	// Closing hashes ("## Title ##") are decoration; "C#" is not.
	if trimmed := strings.TrimRight(text, "#"); trimmed != text && strings.HasSuffix(trimmed, " ") {
		text = strings.TrimSpace(trimmed)
	}
	if text == "" {
		return 0, "", false
	}
	return min(level, MaxHeadingLevel), text, true
}

// ParseInline splits text into emphasis runs. Unmatched markers stay literal.
func ParseInline(text string) []Run {
	return mergeRuns(parseInline(text, false, false, nil))
}

func parseInline(s string, bold, italic bool, out []Run) []Run {
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, Run{Text: buf.String(), Bold: bold, Italic: italic})
			buf.Reset()
		}
	}

	for i := 0; i < len(s); {
		if s[i] != '*' {
			buf.WriteByte(s[i])
			i++
			continue
		}
		n := starRun(s, i)
		if n <= 3 {
			if end := closingDelimiter(s, i+n, n); end >= 0 {
				flush()
				out = parseInline(s[i+n:end], bold || n >= 2, italic || n != 2, out)
				i = end + n
				continue
			}
		}
		buf.WriteString(s[i : i+n])
		i += n
	}
	flush()
	return out
}

func starRun(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] == '*' {
		n++
	}
	return n
}

// closingDelimiter finds a star run of exactly n stars after from that closes an
// emphasis span. The enclosed text must be non-empty and must not begin or end
// with whitespace.
func closingDelimiter(s string, from, n int) int {
	if from >= len(s) || isSpace(s[from]) {
		return -1
	}
	for j := from; j < len(s); {
		if s[j] != '*' {
			j++
			continue
		}
		m := starRun(s, j)
		if m == n && j > from && !isSpace(s[j-1]) {
			return j
		}
		j += m
	}
	return -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

func mergeRuns(runs []Run) []Run {
	merged := make([]Run, 0, len(runs))
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		if n := len(merged); n > 0 && merged[n-1].Bold == r.Bold && merged[n-1].Italic == r.Italic {
			merged[n-1].Text += r.Text
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Plain strips emphasis markers from a single line of inline markdown.
func Plain(text string) string {
	var sb strings.Builder
	for _, r := range ParseInline(text) {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// PlainText renders a whole markdown body as marker-free text, one block per line.
func PlainText(src string) string {
	doc := Parse(src)
	lines := make([]string, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		switch b.Kind {
		case Blank:
			lines = append(lines, "")
		case Bullet:
			lines = append(lines, "- "+b.Plain())
		case Numbered:
			lines = append(lines, strconv.Itoa(b.Number)+". "+b.Plain())
		default:
			lines = append(lines, b.Plain())
		}
	}
	return strings.Join(lines, "\n")
}
