package dom

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustParse(t *testing.T, markup string) *html.Node {
	t.Helper()
	doc, err := ParseString(markup)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestClassify_PointerDivIsDeadButtonWithHandlerIsNot(t *testing.T) {
	doc := mustParse(t, `<html><body>
		<div style="cursor:pointer">Open</div>
		<button onClick="save()">Save</button>
	</body></html>`)

	report := NewClassifier(testLogger()).Classify(doc)

	if len(report.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(report.Findings), report.Findings)
	}
	f := report.Findings[0]
	if f.Tag != "div" {
		t.Errorf("expected div, got %s", f.Tag)
	}
	if f.Path != "html > body > div" {
		t.Errorf("unexpected path %q", f.Path)
	}
	if !strings.HasPrefix(f.Snippet, `<div style="cursor:pointer">`) {
		t.Errorf("unexpected snippet %q", f.Snippet)
	}
	if len(f.Reasons) != 1 || f.Reasons[0] != "style:cursor-pointer" {
		t.Errorf("unexpected reasons %v", f.Reasons)
	}
}

func TestClassify_Heuristics(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		dead   bool
	}{
		{"bare button", `<button>Go</button>`, true},
		{"button with data-action", `<button data-action="go">Go</button>`, false},
		{"button with empty data-action", `<button data-action="">Go</button>`, true},
		{"button with data-handler", `<button data-handler="x">Go</button>`, false},
		{"submit input", `<input type="submit">`, true},
		{"text input", `<input type="text">`, false},
		{"anchor without href", `<a>More</a>`, true},
		{"anchor with href", `<a href="/more">More</a>`, false},
		{"role button", `<span role="button">x</span>`, true},
		{"role presentation", `<span role="presentation">x</span>`, false},
		{"btn class", `<span class="btn primary">x</span>`, true},
		{"btn- prefixed class", `<span class="btn-large">x</span>`, true},
		{"plain div", `<div>x</div>`, false},
		{"disabled", `<button disabled>Go</button>`, false},
		{"aria-disabled", `<button aria-disabled="true">Go</button>`, false},
		{"hidden attribute", `<button hidden>Go</button>`, false},
		{"aria-hidden", `<button aria-hidden="true">Go</button>`, false},
		{"display none", `<button style="display: none">Go</button>`, false},
		{"visibility hidden", `<button style="visibility:hidden">Go</button>`, false},
		{"zero width", `<button style="width:0px">Go</button>`, false},
		{"zero height attribute", `<button height="0">Go</button>`, false},
		{"inside form", `<form><button>Go</button></form>`, false},
		{"inside svg", `<svg><g role="button"></g></svg>`, false},
		{"decorative class", `<span class="cta icon">x</span>`, false},
		{"contenteditable", `<div role="button" contenteditable="true">x</div>`, false},
		{"contenteditable false", `<div role="button" contenteditable="false">x</div>`, true},
		{"inside link", `<a href="/x"><span class="clickable">x</span></a>`, false},
		{"summary", `<details><summary>More</summary></details>`, true},
	}

	c := NewClassifier(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, "<html><body>"+tt.markup+"</body></html>")
			report := c.Classify(doc)
			if got := len(report.Findings) > 0; got != tt.dead {
				t.Errorf("dead = %v, want %v (findings %+v)", got, tt.dead, report.Findings)
			}
		})
	}
}

func TestClassify_RegistryStrategy(t *testing.T) {
	registry := NewRegistryStrategy("checkout")
	c := NewClassifier(testLogger(), AttributeStrategy{}, registry)

	doc := mustParse(t, `<html><body>
		<button id="checkout">Buy</button>
		<button data-handler-id="later">Later</button>
	</body></html>`)

	if got := len(c.Classify(doc).Findings); got != 1 {
		t.Fatalf("expected 1 finding before registering, got %d", got)
	}

	registry.Register("later")
	if got := len(c.Classify(doc).Findings); got != 0 {
		t.Fatalf("expected 0 findings after registering, got %d", got)
	}

	registry.Unregister("checkout")
	report := c.Classify(doc)
	if len(report.Findings) != 1 || report.Findings[0].Path != "button#checkout" {
		t.Fatalf("expected only #checkout to be dead, got %+v", report.Findings)
	}
}

type brokenStrategy struct {
	panicOn string
}

func (brokenStrategy) Name() string { return "broken" }

func (b brokenStrategy) HasAction(n *html.Node) (bool, error) {
	if id, _ := attrValue(n, "id"); id == b.panicOn {
		panic("boom")
	}
	if id, _ := attrValue(n, "id"); id == "err" {
		return false, errors.New("cannot tell")
	}
	return false, nil
}

func TestClassify_FailuresAreIsolatedPerElement(t *testing.T) {
	c := NewClassifier(testLogger(), brokenStrategy{panicOn: "bad"})
	doc := mustParse(t, `<html><body>
		<button id="bad">A</button>
		<button id="err">B</button>
		<button id="good">C</button>
	</body></html>`)

	report := c.Classify(doc)

	if report.Failed != 2 {
		t.Errorf("expected 2 failed elements, got %d", report.Failed)
	}
	if len(report.Findings) != 1 || report.Findings[0].Path != "button#good" {
		t.Errorf("expected only #good reported, got %+v", report.Findings)
	}
}

func TestPath_NthOfTypeAndClass(t *testing.T) {
	doc := mustParse(t, `<html><body><ul><li>a</li><li><span class="cta big">b</span></li></ul></body></html>`)
	report := NewClassifier(testLogger()).Classify(doc)
	if len(report.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(report.Findings))
	}
	want := "html > body > ul > li:nth-of-type(2) > span.cta"
	if got := report.Findings[0].Path; got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestSnippet_Truncates(t *testing.T) {
	long := strings.Repeat("é", 200)
	doc := mustParse(t, `<html><body><button>`+long+`</button></body></html>`)
	report := NewClassifier(testLogger()).Classify(doc)
	if len(report.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(report.Findings))
	}
	snippet := report.Findings[0].Snippet
	if len(snippet) > MaxSnippetBytes {
		t.Errorf("snippet is %d bytes, max %d", len(snippet), MaxSnippetBytes)
	}
	if !strings.HasPrefix(snippet, "<button>é") {
		t.Errorf("unexpected snippet start %q", snippet[:12])
	}
	if !strings.HasSuffix(snippet, "é") {
		t.Errorf("snippet cut inside a rune: %q", snippet[len(snippet)-4:])
	}
}

func TestReaderSource_FreshTreeEachSnapshot(t *testing.T) {
	src, err := ReaderSource(strings.NewReader(`<button>x</button>`))
	if err != nil {
		t.Fatal(err)
	}
	a, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	b, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("expected distinct trees")
	}
}
