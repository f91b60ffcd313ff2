package dom

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Path returns a CSS-like selector path for n, e.g.
// "html > body > div#app > ul > li:nth-of-type(2) > span.cta".
// The walk stops at the nearest ancestor with an id.
func Path(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		part := cur.Data
		if id, ok := attrValue(cur, "id"); ok && id != "" {
			parts = append(parts, part+"#"+id)
			break
		}
		if classes := classTokens(cur); len(classes) > 0 {
			part += "." + classes[0]
		}
		if idx, total := siblingIndex(cur); total > 1 {
			part += ":nth-of-type(" + strconv.Itoa(idx) + ")"
		}
		parts = append(parts, part)
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// siblingIndex returns n's 1-based position among siblings with the same tag
// and how many such siblings exist.
func siblingIndex(n *html.Node) (idx, total int) {
	if n.Parent == nil {
		return 1, 1
	}
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode || s.Data != n.Data {
			continue
		}
		total++
		if s == n {
			idx = total
		}
	}
	return idx, total
}

// Snippet renders the outer HTML of n cut to at most max bytes on a rune boundary.
func Snippet(n *html.Node, max int) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "<" + n.Data + ">"
	}
	b := buf.Bytes()
	if len(b) <= max {
		return string(b)
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut])
}
