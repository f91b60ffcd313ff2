package dom

import (
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// ActionStrategy decides whether an element has an action bound to it.
// An error means the element could not be judged and is skipped.
type ActionStrategy interface {
	Name() string
	HasAction(n *html.Node) (bool, error)
}

// DefaultStrategies are used when a Classifier is built without any.
func DefaultStrategies() []ActionStrategy {
	return []ActionStrategy{AttributeStrategy{}, LinkAncestorStrategy{}}
}

// AttributeStrategy treats inline event handler attributes (onclick, onkeydown, ...)
// and the data-action / data-handler markers as a binding.
type AttributeStrategy struct{}

func (AttributeStrategy) Name() string { return "attribute" }

func (AttributeStrategy) HasAction(n *html.Node) (bool, error) {
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		switch {
		case key == "data-action", key == "data-handler":
			if strings.TrimSpace(a.Val) != "" {
				return true, nil
			}
		case len(key) > 2 && strings.HasPrefix(key, "on"):
			return true, nil
		}
	}
	return false, nil
}

// RegistryStrategy knows the handlers the application declared at runtime,
// keyed by element id or data-handler-id.
type RegistryStrategy struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewRegistryStrategy(keys ...string) *RegistryStrategy {
	r := &RegistryStrategy{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		r.keys[k] = struct{}{}
	}
	return r
}

func (r *RegistryStrategy) Name() string { return "registry" }

// Register declares that the element identified by key has a handler.
func (r *RegistryStrategy) Register(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key] = struct{}{}
}

func (r *RegistryStrategy) Unregister(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, key)
}

func (r *RegistryStrategy) HasAction(n *html.Node) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, attr := range []string{"data-handler-id", "id"} {
		if v, ok := attrValue(n, attr); ok && v != "" {
			if _, found := r.keys[v]; found {
				return true, nil
			}
		}
	}
	return false, nil
}

// LinkAncestorStrategy treats anything nested in a navigable link as bound.
type LinkAncestorStrategy struct{}

func (LinkAncestorStrategy) Name() string { return "link_ancestor" }

func (LinkAncestorStrategy) HasAction(n *html.Node) (bool, error) {
	for p := n.Parent; p != nil; p = p.Parent {
		if isElement(p, "a") && hasAttr(p, "href") {
			return true, nil
		}
	}
	return false, nil
}
