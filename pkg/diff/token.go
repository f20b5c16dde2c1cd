package diff

import (
	"log/slog"
	"strings"

	"golang.org/x/net/html"

	"github.com/verve-dev/verve/pkg/markup"
	"github.com/verve-dev/verve/pkg/protocol"
)

// TokenEngine correlates selector tokens between two renders and emits
// fine-grained patches. Identity is positional: the nth tokenized element
// of the old render is compared with the nth of the new. Any correlation
// failure degrades the whole diff to one full replacement.
type TokenEngine struct {
	logger *slog.Logger
}

// NewTokenEngine returns the token-correlating engine. A nil logger uses
// slog.Default.
func NewTokenEngine(logger *slog.Logger) *TokenEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenEngine{logger: logger.With("component", "diff")}
}

// tracked is one tokenized element of a render, in document order.
type tracked struct {
	node  *html.Node
	token string
}

// Diff computes the patch list transforming oldHTML into newHTML. Patches
// come out in document order of the new render and must be applied in that
// order.
func (e *TokenEngine) Diff(componentID, oldHTML, newHTML string) []protocol.Patch {
	if oldHTML == newHTML {
		return nil
	}

	oldRoots, errOld := markup.ParseFragment(oldHTML)
	newRoots, errNew := markup.ParseFragment(newHTML)
	if errOld != nil || errNew != nil {
		e.logger.Warn("render not parseable, falling back to full replace",
			"component_id", componentID)
		return []protocol.Patch{fullReplace(componentID, newHTML)}
	}

	oldRoot := findBoundary(oldRoots, componentID)
	newRoot := findBoundary(newRoots, componentID)
	if oldRoot != nil && newRoot != nil && oldRoot.Data != newRoot.Data {
		return []protocol.Patch{{
			Op:       protocol.OpReplaceElement,
			Selector: protocol.BoundarySelector(componentID),
			Data:     markup.Render(newRoot),
		}}
	}

	oldEls := collect(oldRoots)
	newEls := collect(newRoots)
	if len(oldEls) != len(newEls) {
		e.logger.Debug("element count changed, falling back to full replace",
			"component_id", componentID, "old", len(oldEls), "new", len(newEls))
		return []protocol.Patch{fullReplace(componentID, newHTML)}
	}
	for i := range oldEls {
		if oldEls[i].token != newEls[i].token || oldEls[i].node.Data != newEls[i].node.Data {
			e.logger.Debug("token correlation failed, falling back to full replace",
				"component_id", componentID, "position", i)
			return []protocol.Patch{fullReplace(componentID, newHTML)}
		}
	}

	var patches []protocol.Patch
	replaced := make([]bool, len(newEls))
	for i := range newEls {
		if replaced[i] {
			continue
		}
		o, n := oldEls[i].node, newEls[i].node
		sel := markup.SelectorFor(newEls[i].token)

		patches = append(patches, diffAttrs(sel, o, n)...)

		if skeleton(o) == skeleton(n) {
			continue
		}
		if textOnly(o) && textOnly(n) {
			patches = append(patches, protocol.Patch{
				Op:       protocol.OpUpdateText,
				Selector: sel,
				Data:     textContent(n),
			})
			continue
		}
		patches = append(patches, protocol.Patch{
			Op:       protocol.OpReplaceInnerHTML,
			Selector: sel,
			Data:     markup.InnerHTML(n),
		})
		// The replacement carries every descendant, so their own diffs
		// would double-apply.
		for j := i + 1; j < len(newEls); j++ {
			if hasAncestor(newEls[j].node, n) {
				replaced[j] = true
			}
		}
	}

	if len(patches) == 0 {
		// Something changed outside every tokenized element.
		return []protocol.Patch{fullReplace(componentID, newHTML)}
	}
	return patches
}

func collect(roots []*html.Node) []tracked {
	var els []tracked
	markup.WalkElements(roots, func(n *html.Node) bool {
		if tok, ok := markup.Attr(n, markup.SelectorAttr); ok {
			els = append(els, tracked{node: n, token: tok})
		}
		return true
	})
	return els
}

// diffAttrs emits attribute patches for one correlated pair: added and
// changed attributes in new-render order, then removals.
func diffAttrs(sel string, o, n *html.Node) []protocol.Patch {
	oldAttrs := make(map[string]string, len(o.Attr))
	for _, a := range o.Attr {
		oldAttrs[a.Key] = a.Val
	}
	var patches []protocol.Patch
	seen := make(map[string]bool, len(n.Attr))
	for _, a := range n.Attr {
		seen[a.Key] = true
		if old, ok := oldAttrs[a.Key]; !ok || old != a.Val {
			patches = append(patches, protocol.Patch{
				Op:       protocol.OpSetAttribute,
				Selector: sel,
				Name:     a.Key,
				Data:     a.Val,
			})
		}
	}
	for _, a := range o.Attr {
		if !seen[a.Key] {
			patches = append(patches, protocol.Patch{
				Op:       protocol.OpRemoveAttribute,
				Selector: sel,
				Data:     a.Key,
			})
		}
	}
	return patches
}

// skeleton renders an element's content with every tokenized descendant
// subtree collapsed to its token. Equal skeletons mean every content
// difference lives inside a tokenized descendant, which emits its own
// patches.
func skeleton(n *html.Node) string {
	var b strings.Builder
	writeSkeleton(&b, n)
	return b.String()
}

func writeSkeleton(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode:
			if tok, ok := markup.Attr(c, markup.SelectorAttr); ok {
				b.WriteString("\x00")
				b.WriteString(tok)
				b.WriteString("\x00")
				continue
			}
			b.WriteString("<")
			b.WriteString(c.Data)
			for _, a := range c.Attr {
				b.WriteString(" ")
				b.WriteString(a.Key)
				b.WriteString("=")
				b.WriteString(a.Val)
			}
			b.WriteString(">")
			writeSkeleton(b, c)
			b.WriteString("</")
			b.WriteString(c.Data)
			b.WriteString(">")
		}
	}
}

// textOnly reports whether an element has no element children.
func textOnly(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return false
		}
	}
	return true
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func hasAncestor(n, ancestor *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
