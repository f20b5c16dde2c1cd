// Package diff computes minimal patch lists between two renders of the
// same component. The engine is chosen once at construction: TokenEngine
// produces fine-grained patches by correlating selector tokens, and
// CoarseEngine always replaces the component's inner markup. TokenEngine
// degrades to the coarse result whenever correlation fails, so callers
// never see an error from either.
package diff

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/verve-dev/verve/pkg/markup"
	"github.com/verve-dev/verve/pkg/protocol"
)

// Engine turns two renders into an ordered patch list. Implementations
// never fail; a diff that cannot be expressed minimally comes back as a
// single full replacement. Diffing identical renders yields nil.
type Engine interface {
	Diff(componentID, oldHTML, newHTML string) []protocol.Patch
}

// Engine names accepted by Select.
const (
	EngineToken  = "token"
	EngineCoarse = "coarse"
)

// Select returns the named engine. Used by configuration loading; code
// constructing an engine directly should call the constructors.
func Select(name string) (Engine, error) {
	switch name {
	case EngineToken, "":
		return NewTokenEngine(nil), nil
	case EngineCoarse:
		return NewCoarseEngine(), nil
	default:
		return nil, fmt.Errorf("diff: unknown engine %q", name)
	}
}

// CoarseEngine replaces the component's entire inner markup on any change.
// It is the fallback representation of TokenEngine and the reference
// implementation for cross-checking.
type CoarseEngine struct{}

// NewCoarseEngine returns the full-replacement engine.
func NewCoarseEngine() *CoarseEngine {
	return &CoarseEngine{}
}

// Diff returns nil for identical renders and one ReplaceInnerHTML patch
// addressing the component boundary otherwise.
func (e *CoarseEngine) Diff(componentID, oldHTML, newHTML string) []protocol.Patch {
	if oldHTML == newHTML {
		return nil
	}
	return []protocol.Patch{fullReplace(componentID, newHTML)}
}

// fullReplace builds the boundary-wide replacement patch. The data is the
// inner markup of the new render's boundary element; when the boundary
// cannot be located the raw render is sent as-is.
func fullReplace(componentID, newHTML string) protocol.Patch {
	inner := newHTML
	if roots, err := markup.ParseFragment(newHTML); err == nil {
		if root := findBoundary(roots, componentID); root != nil {
			inner = markup.InnerHTML(root)
		}
	}
	return protocol.FullReplace(componentID, inner)
}

func findBoundary(roots []*html.Node, componentID string) *html.Node {
	var found *html.Node
	markup.WalkElements(roots, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if id, ok := markup.Attr(n, markup.BoundaryAttr); ok && id == componentID {
			found = n
			return false
		}
		return true
	})
	return found
}
