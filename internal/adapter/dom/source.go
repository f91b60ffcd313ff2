package dom

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/net/html"
)

// Source yields the document the auditor scans. Each call should reflect the
// currently rendered page.
type Source interface {
	Snapshot(ctx context.Context) (*html.Node, error)
}

// SnapshotFunc adapts a function to a Source.
type SnapshotFunc func(ctx context.Context) (*html.Node, error)

func (f SnapshotFunc) Snapshot(ctx context.Context) (*html.Node, error) { return f(ctx) }

// StaticSource always returns doc.
func StaticSource(doc *html.Node) Source {
	return SnapshotFunc(func(context.Context) (*html.Node, error) { return doc, nil })
}

// ReaderSource reads r once and parses a fresh tree on every snapshot.
func ReaderSource(r io.Reader) (Source, error) {
	markup, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markup: %w", err)
	}
	return SnapshotFunc(func(context.Context) (*html.Node, error) {
		return Parse(bytes.NewReader(markup))
	}), nil
}

// FileSource re-reads path on every snapshot so edits are picked up.
func FileSource(path string) Source {
	return SnapshotFunc(func(ctx context.Context) (*html.Node, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		return Parse(f)
	})
}

// Parse parses an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

// ParseString is Parse for literal markup.
func ParseString(markup string) (*html.Node, error) {
	return Parse(bytes.NewReader([]byte(markup)))
}
