package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	epub "github.com/go-shiori/go-epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"bookforge/internal/markdown"
)

const epubCSS = `body { font-family: Georgia, serif; line-height: 1.8; }
h1 { font-size: 1.5em; margin-top: 2em; }
h2 { font-size: 1.2em; margin-top: 1.5em; }
p { text-align: justify; margin-bottom: 0.5em; }
.title { text-align: center; margin-top: 30%; }
.subtitle { text-align: center; color: #666666; }
.illustration { text-align: center; }
.illustration img { max-width: 100%; }
`

func renderEPUB(m *Manuscript) ([]byte, error) {
	book, err := epub.NewEpub(m.Title)
	if err != nil {
		return nil, err
	}
	book.SetLang(m.Language)
	book.SetDescription(m.Description)
	book.SetIdentifier("urn:uuid:" + m.ID)

	cssPath, err := book.AddCSS(dataURL("text/css", []byte(epubCSS)), "book.css")
	if err != nil {
		return nil, fmt.Errorf("add stylesheet: %w", err)
	}

	title, err := renderNodes(titlePageNodes(m))
	if err != nil {
		return nil, err
	}
	if _, err := book.AddSection(title, m.Title, "title.xhtml", cssPath); err != nil {
		return nil, fmt.Errorf("add title page: %w", err)
	}

	for _, ch := range m.Chapters {
		imagePath := ""
		if ch.Image != nil {
			name := fmt.Sprintf("chapter_%d.%s", ch.Number, ch.Image.Extension())
			imagePath, err = book.AddImage(dataURL(ch.Image.ContentType, ch.Image.Data), name)
			if err != nil {
				return nil, fmt.Errorf("add chapter %d image: %w", ch.Number, err)
			}
		}
		body, err := renderNodes(chapterNodes(ch, imagePath))
		if err != nil {
			return nil, err
		}
		file := fmt.Sprintf("chapter_%d.xhtml", ch.Number)
		if _, err := book.AddSection(body, ch.Label(), file, cssPath); err != nil {
			return nil, fmt.Errorf("add chapter %d: %w", ch.Number, err)
		}
	}

	var buf bytes.Buffer
	if _, err := book.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func titlePageNodes(m *Manuscript) []*html.Node {
	nodes := []*html.Node{withText(element(atom.H1, "class", "title"), m.Title)}
	if m.Subtitle != "" {
		nodes = append(nodes, withText(element(atom.P, "class", "subtitle"), m.Subtitle))
	}
	if m.Description != "" {
		nodes = append(nodes, withText(element(atom.P, "class", "subtitle"), m.Description))
	}
	return nodes
}

// chapterNodes renders one chapter's block tree. Consecutive list items share
// one list element; a numbered list starts at its first item's ordinal.
func chapterNodes(ch ManuscriptChapter, imagePath string) []*html.Node {
	heading := element(atom.H1)
	heading.AppendChild(textNode(ch.Heading))
	if len(ch.TitleRuns) > 0 {
		heading.AppendChild(textNode(": "))
		appendRuns(heading, ch.TitleRuns)
	}
	nodes := []*html.Node{heading}

	if imagePath != "" {
		figure := element(atom.P, "class", "illustration")
		figure.AppendChild(element(atom.Img, "src", imagePath, "alt", ch.Title))
		nodes = append(nodes, figure)
	}

	var list *html.Node
	for _, b := range ch.Body.Blocks {
		switch b.Kind {
		case markdown.Bullet, markdown.Numbered:
			tag := atom.Ul
			if b.Kind == markdown.Numbered {
				tag = atom.Ol
			}
			if list == nil || list.DataAtom != tag {
				list = element(tag)
				if tag == atom.Ol && b.Number > 1 {
					list.Attr = append(list.Attr, html.Attribute{Key: "start", Val: strconv.Itoa(b.Number)})
				}
				nodes = append(nodes, list)
			}
			item := element(atom.Li)
			appendRuns(item, b.Runs)
			list.AppendChild(item)
			continue
		case markdown.Heading:
			h := element(headingAtom(b.Level))
			appendRuns(h, b.Runs)
			nodes = append(nodes, h)
		case markdown.Paragraph:
			p := element(atom.P)
			appendRuns(p, b.Runs)
			nodes = append(nodes, p)
		}
		list = nil
	}
	return nodes
}

func appendRuns(parent *html.Node, runs []markdown.Run) {
	for _, r := range runs {
		node := textNode(r.Text)
		if r.Italic {
			em := element(atom.Em)
			em.AppendChild(node)
			node = em
		}
		if r.Bold {
			strong := element(atom.Strong)
			strong.AppendChild(node)
			node = strong
		}
		parent.AppendChild(node)
	}
}

func headingAtom(level int) atom.Atom {
	switch level {
	case 1:
		return atom.H1
	case 2:
		return atom.H2
	case 3:
		return atom.H3
	}
	return atom.H4
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func textNode(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(textNode(text))
	return n
}

func renderNodes(nodes []*html.Node) (string, error) {
	var sb strings.Builder
	for _, n := range nodes {
		if err := html.Render(&sb, n); err != nil {
			return "", err
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func dataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
