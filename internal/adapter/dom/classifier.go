package dom

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxSnippetBytes bounds Finding.Snippet.
const MaxSnippetBytes = 160

var (
	interactiveRoles = set("button", "link", "menuitem", "menuitemcheckbox", "menuitemradio",
		"tab", "checkbox", "switch", "option", "radio")
	interactiveInputTypes = set("button", "submit", "reset", "image")
	buttonClasses         = set("btn", "button", "clickable", "cta", "cursor-pointer")
	decorativeClasses     = set("icon", "decorative", "avatar", "badge", "divider", "sr-only")
)

// Finding is an interactive-looking element with no detectable action.
type Finding struct {
	Path    string   `json:"path"`
	Snippet string   `json:"snippet"`
	Tag     string   `json:"tag"`
	Reasons []string `json:"reasons"`
}

// Report is the result of classifying one document.
type Report struct {
	Findings []Finding
	// Scanned counts the element nodes visited.
	Scanned int
	// Failed counts elements skipped because classification errored or panicked.
	Failed int
}

// Classifier finds dead elements in a document. It is safe for concurrent use
// as long as its strategies are.
type Classifier struct {
	strategies []ActionStrategy
	logger     *slog.Logger
}

// NewClassifier builds a Classifier. With no strategies DefaultStrategies is used.
func NewClassifier(logger *slog.Logger, strategies ...ActionStrategy) *Classifier {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Classifier{
		strategies: strategies,
		logger:     logger.With("component", "dom_classifier"),
	}
}

// Classify walks every element of doc in document order.
func (c *Classifier) Classify(doc *html.Node) Report {
	var report Report
	if doc == nil {
		return report
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			report.Scanned++
			f, dead, err := c.evaluate(n)
			switch {
			case err != nil:
				report.Failed++
				c.logger.Debug("skipping element", "tag", n.Data, "error", err)
			case dead:
				report.Findings = append(report.Findings, f)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return report
}

// evaluate classifies a single element. A panic is turned into an error so one
// bad element never aborts the walk.
func (c *Classifier) evaluate(n *html.Node) (f Finding, dead bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, dead, err = Finding{}, false, fmt.Errorf("classifier panic: %v", r)
		}
	}()

	reasons := InteractiveReasons(n)
	if len(reasons) == 0 || Ignored(n) {
		return Finding{}, false, nil
	}
	for _, s := range c.strategies {
		bound, err := s.HasAction(n)
		if err != nil {
			return Finding{}, false, fmt.Errorf("strategy %s: %w", s.Name(), err)
		}
		if bound {
			return Finding{}, false, nil
		}
	}

	return Finding{
		Path:    Path(n),
		Snippet: Snippet(n, MaxSnippetBytes),
		Tag:     n.Data,
		Reasons: reasons,
	}, true, nil
}

// InteractiveReasons lists why n looks clickable. Empty means it does not.
func InteractiveReasons(n *html.Node) []string {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	var reasons []string

	switch n.DataAtom {
	case atom.Button, atom.Summary:
		reasons = append(reasons, "tag:"+n.Data)
	case atom.Input:
		if t, _ := attrValue(n, "type"); interactiveInputTypes[strings.ToLower(t)] {
			reasons = append(reasons, "tag:input["+strings.ToLower(t)+"]")
		}
	case atom.A:
		if !hasAttr(n, "href") {
			reasons = append(reasons, "tag:a")
		}
	}

	if role, ok := attrValue(n, "role"); ok && interactiveRoles[strings.ToLower(strings.TrimSpace(role))] {
		reasons = append(reasons, "role:"+strings.ToLower(strings.TrimSpace(role)))
	}
	for _, cls := range classTokens(n) {
		if buttonClasses[cls] || strings.HasPrefix(cls, "btn-") {
			reasons = append(reasons, "class:"+cls)
			break
		}
	}
	if inlineStyle(n)["cursor"] == "pointer" {
		reasons = append(reasons, "style:cursor-pointer")
	}
	return reasons
}

// Ignored reports elements that are never audited even if they look clickable.
func Ignored(n *html.Node) bool {
	if hasAttr(n, "disabled") || attrIs(n, "aria-disabled", "true") {
		return true
	}
	if hasAttr(n, "hidden") || attrIs(n, "aria-hidden", "true") {
		return true
	}
	style := inlineStyle(n)
	if style["display"] == "none" || style["visibility"] == "hidden" {
		return true
	}
	if isZeroLength(style["width"]) || isZeroLength(style["height"]) {
		return true
	}
	if w, ok := attrValue(n, "width"); ok && isZeroLength(w) {
		return true
	}
	if h, ok := attrValue(n, "height"); ok && isZeroLength(h) {
		return true
	}
	if isElement(n, "a") && hasAttr(n, "href") {
		return true
	}
	if v, ok := attrValue(n, "contenteditable"); ok && !strings.EqualFold(v, "false") {
		return true
	}
	for _, cls := range classTokens(n) {
		if decorativeClasses[cls] {
			return true
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if p.DataAtom == atom.Form || p.DataAtom == atom.Svg || p.Data == "svg" {
			return true
		}
	}
	return n.DataAtom == atom.Svg
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

func attrValue(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func hasAttr(n *html.Node, key string) bool {
	_, ok := attrValue(n, key)
	return ok
}

func attrIs(n *html.Node, key, want string) bool {
	v, ok := attrValue(n, key)
	return ok && strings.EqualFold(strings.TrimSpace(v), want)
}

func classTokens(n *html.Node) []string {
	v, _ := attrValue(n, "class")
	return strings.Fields(strings.ToLower(v))
}

// inlineStyle parses the style attribute into lower-cased property/value pairs.
func inlineStyle(n *html.Node) map[string]string {
	v, ok := attrValue(n, "style")
	if !ok {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(v, ";") {
		prop, val, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		val = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important"))
		out[strings.ToLower(strings.TrimSpace(prop))] = strings.ToLower(val)
	}
	return out
}

func isZeroLength(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return false
	}
	for _, unit := range []string{"px", "rem", "em", "%", "vh", "vw"} {
		if strings.HasSuffix(v, unit) {
			v = strings.TrimSuffix(v, unit)
			break
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f == 0
}

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}
