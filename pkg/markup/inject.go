package markup

import (
	"golang.org/x/net/html"
)

// Inject walks the parsed render in document order and assigns selector
// tokens to reactive elements. The counter restarts at zero per call, so
// identity is positional: the nth reactive element of every render of the
// same component gets the same token. Elements already carrying a token
// keep it but still consume a counter slot, which keeps later positions
// stable.
func Inject(componentID string, roots []*html.Node) {
	n := 0
	WalkElements(roots, func(el *html.Node) bool {
		if !IsReactive(el) {
			return true
		}
		if _, ok := Attr(el, SelectorAttr); !ok {
			SetAttr(el, SelectorAttr, Token(componentID, n))
		}
		n++
		return true
	})
}

// Prepare parses a raw component render, injects selector tokens, and
// marks the component boundary. When the render has a single root element
// the boundary attribute is added in place; otherwise the render is
// wrapped in a div carrying it. The returned markup is normalized by the
// parser, so preparing the same input twice yields identical output.
func Prepare(componentID, raw string) (string, error) {
	roots, err := ParseFragment(raw)
	if err != nil {
		return "", err
	}
	Inject(componentID, roots)

	if root := singleElement(roots); root != nil {
		SetAttr(root, BoundaryAttr, componentID)
		return Render(roots...), nil
	}

	wrapper := &html.Node{Type: html.ElementNode, Data: "div"}
	SetAttr(wrapper, BoundaryAttr, componentID)
	for _, r := range roots {
		r.Parent = nil
		r.PrevSibling = nil
		r.NextSibling = nil
		wrapper.AppendChild(r)
	}
	return Render(wrapper), nil
}

// singleElement returns the sole element node among roots, or nil when the
// render has zero or multiple element roots or non-whitespace text at the
// top level.
func singleElement(roots []*html.Node) *html.Node {
	var el *html.Node
	for _, n := range roots {
		switch n.Type {
		case html.ElementNode:
			if el != nil {
				return nil
			}
			el = n
		case html.TextNode:
			if !isWhitespace(n.Data) {
				return nil
			}
		}
	}
	return el
}

func isWhitespace(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}
