package page

import (
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipped elements never contribute visible text.
var skipped = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
	atom.Svg:      true,
	atom.Iframe:   true,
}

// block elements end the current line of text.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true, atom.Main: true,
	atom.Blockquote: true, atom.Pre: true, atom.Table: true, atom.Ul: true, atom.Ol: true,
}

// mainClasses and mainIDs mark the primary content container on pages that
// lack a <main> or <article> element.
var (
	mainClasses = []string{"content", "post-content"}
	mainIDs     = []string{"content"}
)

// flatten keeps source line breaks inside a text node from splitting lines.
var flatten = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// strict strips any markup smuggled into attribute values.
var strict = bluemonday.StrictPolicy()

// Parse reads an HTML document and returns its page context. Body text is
// taken from the main content container when the page has one, otherwise
// from the whole body. pageURL is used as the Context URL and as the base
// for relative image sources.
func Parse(r io.Reader, pageURL string) (*Context, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	base, _ := url.Parse(pageURL)
	h := &head{base: base, meta: &Metadata{}, seen: map[string]bool{}}
	h.walk(doc)
	h.finish()

	root := findMain(doc)
	if root == nil {
		root = doc
	}
	var text strings.Builder
	writeText(&text, root, false)

	pc := &Context{
		URL:     pageURL,
		Title:   collapse(h.title),
		Content: TruncateRunes(normalise(text.String()), MaxContentRunes),
	}
	if !h.meta.empty() {
		pc.Metadata = h.meta
	}
	return pc, nil
}

// head collects the title, meta tags and images of a document.
type head struct {
	base    *url.URL
	title   string
	ogDesc  string
	ogImage string
	meta    *Metadata
	seen    map[string]bool
}

func (h *head) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Title:
			if h.title == "" && n.FirstChild != nil {
				h.title = n.FirstChild.Data
			}
		case atom.Meta:
			h.readMeta(n)
		case atom.Img:
			h.addImage(attr(n, "src"))
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		h.walk(c)
	}
}

func (h *head) readMeta(n *html.Node) {
	name := strings.ToLower(attr(n, "name"))
	if name == "" {
		name = strings.ToLower(attr(n, "property"))
	}
	content := clean(attr(n, "content"))
	if content == "" {
		return
	}

	switch name {
	case "description":
		if h.meta.Description == "" {
			h.meta.Description = content
		}
	case "og:description":
		h.ogDesc = content
	case "og:image":
		h.ogImage = content
	case "keywords":
		for k := range strings.SplitSeq(content, ",") {
			if k = strings.TrimSpace(k); k != "" {
				h.meta.Keywords = append(h.meta.Keywords, k)
			}
		}
	case "author":
		h.meta.Author = content
	case "article:published_time":
		h.meta.PublishedDate = content
	}
}

// finish applies the Open Graph fallbacks.
func (h *head) finish() {
	if h.meta.Description == "" {
		h.meta.Description = h.ogDesc
	}
	if h.ogImage == "" {
		return
	}
	imgs := h.meta.Images
	h.meta.Images, h.seen = nil, map[string]bool{}
	h.addImage(h.ogImage)
	for _, src := range imgs {
		h.addImage(src)
	}
}

func (h *head) addImage(src string) {
	if len(h.meta.Images) >= MaxImages {
		return
	}
	src = strings.TrimSpace(src)
	if src == "" || strings.HasPrefix(src, "data:") {
		return
	}
	if h.base != nil {
		if ref, err := h.base.Parse(src); err == nil {
			src = ref.String()
		}
	}
	if h.seen[src] {
		return
	}
	h.seen[src] = true
	h.meta.Images = append(h.meta.Images, src)
}

// findMain returns the first main content container in document order.
func findMain(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && isMain(n) {
		return n
	}
	if n.Type == html.ElementNode && skipped[n.DataAtom] {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := findMain(c); m != nil {
			return m
		}
	}
	return nil
}

func isMain(n *html.Node) bool {
	switch {
	case n.DataAtom == atom.Main, n.DataAtom == atom.Article:
		return true
	case strings.EqualFold(attr(n, "role"), "main"):
		return true
	case slices.Contains(mainIDs, attr(n, "id")):
		return true
	}
	for class := range strings.FieldsSeq(attr(n, "class")) {
		if slices.Contains(mainClasses, class) {
			return true
		}
	}
	return false
}

func writeText(b *strings.Builder, n *html.Node, hidden bool) {
	switch n.Type {
	case html.TextNode:
		if !hidden {
			b.WriteString(flatten.Replace(n.Data))
		}
		return
	case html.ElementNode:
		if skipped[n.DataAtom] {
			hidden = true
		}
	}

	breaks := n.Type == html.ElementNode && block[n.DataAtom] && !hidden
	if breaks {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c, hidden)
	}
	if breaks {
		b.WriteByte('\n')
	}
}

func (m *Metadata) empty() bool {
	return m.Description == "" && len(m.Keywords) == 0 && m.Author == "" &&
		m.PublishedDate == "" && len(m.Images) == 0
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// clean sanitises an attribute value to plain text.
func clean(s string) string {
	return collapse(html.UnescapeString(strict.Sanitize(s)))
}

// collapse folds runs of whitespace into single spaces and trims the ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalise collapses whitespace within lines and drops blank lines.
func normalise(s string) string {
	var lines []string
	for line := range strings.SplitSeq(s, "\n") {
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
