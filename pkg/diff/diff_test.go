package diff

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/verve-dev/verve/pkg/markup"
	"github.com/verve-dev/verve/pkg/protocol"
)

const compID = "counter-01"

// prepare runs a raw render through the injector the way the lifecycle
// does before diffing.
func prepare(t *testing.T, raw string) string {
	t.Helper()
	out, err := markup.Prepare(compID, raw)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestDiffIdenticalRendersIsEmpty(t *testing.T) {
	h := prepare(t, `<div class="c"><span class="v">Count: 0</span><button v-click="inc">+</button></div>`)
	for name, e := range map[string]Engine{
		"token":  NewTokenEngine(nil),
		"coarse": NewCoarseEngine(),
	} {
		if got := e.Diff(compID, h, h); len(got) != 0 {
			t.Errorf("%s: Diff(h, h) = %v, want empty", name, got)
		}
	}
}

func TestDiffTextChange(t *testing.T) {
	before := prepare(t, `<div class="c"><span class="v">Count: 0</span><button v-click="inc">+</button></div>`)
	after := prepare(t, `<div class="c"><span class="v">Count: 1</span><button v-click="inc">+</button></div>`)

	patches := NewTokenEngine(nil).Diff(compID, before, after)
	if len(patches) != 1 {
		t.Fatalf("patches = %v, want exactly one", patches)
	}
	p := patches[0]
	if p.Op != protocol.OpUpdateText {
		t.Errorf("Op = %v, want update-text", p.Op)
	}
	if p.Data != "Count: 1" {
		t.Errorf("Data = %q, want %q", p.Data, "Count: 1")
	}
	if want := markup.SelectorFor(markup.Token(compID, 1)); p.Selector != want {
		t.Errorf("Selector = %q, want %q", p.Selector, want)
	}
}

func TestDiffAttributeChanges(t *testing.T) {
	before := prepare(t, `<div class="c"><button v-click="go" class="btn">Go</button></div>`)
	after := prepare(t, `<div class="c"><button v-click="go" class="btn active" disabled="true">Go</button></div>`)

	patches := NewTokenEngine(nil).Diff(compID, before, after)
	if len(patches) != 2 {
		t.Fatalf("patches = %v, want two", patches)
	}
	if patches[0].Op != protocol.OpSetAttribute || patches[0].Name != "class" || patches[0].Data != "btn active" {
		t.Errorf("patches[0] = %+v, want class set to %q", patches[0], "btn active")
	}
	if patches[1].Op != protocol.OpSetAttribute || patches[1].Name != "disabled" {
		t.Errorf("patches[1] = %+v, want disabled set", patches[1])
	}
}

func TestDiffAttributeRemoval(t *testing.T) {
	before := prepare(t, `<div class="c"><button v-click="go" class="btn" disabled="true">Go</button></div>`)
	after := prepare(t, `<div class="c"><button v-click="go" class="btn">Go</button></div>`)

	patches := NewTokenEngine(nil).Diff(compID, before, after)
	if len(patches) != 1 {
		t.Fatalf("patches = %v, want one", patches)
	}
	if patches[0].Op != protocol.OpRemoveAttribute || patches[0].Data != "disabled" {
		t.Errorf("patches[0] = %+v, want disabled removed", patches[0])
	}
}

func TestDiffStructuralChangeFallsBack(t *testing.T) {
	// An element appears, so token counts no longer line up and the diff
	// degrades to one boundary-wide replacement.
	before := prepare(t, `<div class="c"><span class="v">empty</span></div>`)
	after := prepare(t, `<div class="c"><span class="v">2 items</span><ul class="list"><li>a</li><li>b</li></ul></div>`)

	patches := NewTokenEngine(nil).Diff(compID, before, after)
	if len(patches) != 1 {
		t.Fatalf("patches = %v, want single fallback patch", patches)
	}
	p := patches[0]
	if p.Op != protocol.OpReplaceInnerHTML {
		t.Errorf("Op = %v, want replace-inner-html", p.Op)
	}
	if want := protocol.BoundarySelector(compID); p.Selector != want {
		t.Errorf("Selector = %q, want %q", p.Selector, want)
	}
	if !strings.Contains(p.Data, "<ul") {
		t.Errorf("fallback data missing new markup: %q", p.Data)
	}
}

func TestDiffNestedChangeReplacesParentOnce(t *testing.T) {
	before := prepare(t, `<div class="c"><div class="row"><b>x</b></div><button v-click="go">Go</button></div>`)
	after := prepare(t, `<div class="c"><div class="row"><i>y</i></div><button v-click="go">Go</button></div>`)

	patches := NewTokenEngine(nil).Diff(compID, before, after)
	if len(patches) != 1 {
		t.Fatalf("patches = %v, want one", patches)
	}
	if patches[0].Op != protocol.OpReplaceInnerHTML {
		t.Errorf("Op = %v, want replace-inner-html", patches[0].Op)
	}
	if want := markup.SelectorFor(markup.Token(compID, 1)); patches[0].Selector != want {
		t.Errorf("Selector = %q, want %q", patches[0].Selector, want)
	}
}

func TestDiffRootTagChangeReplacesElement(t *testing.T) {
	before := prepare(t, `<div class="c">a</div>`)
	after := prepare(t, `<section class="c">a</section>`)

	patches := NewTokenEngine(nil).Diff(compID, before, after)
	if len(patches) != 1 {
		t.Fatalf("patches = %v, want one", patches)
	}
	if patches[0].Op != protocol.OpReplaceElement {
		t.Errorf("Op = %v, want replace-element", patches[0].Op)
	}
	if want := protocol.BoundarySelector(compID); patches[0].Selector != want {
		t.Errorf("Selector = %q, want %q", patches[0].Selector, want)
	}
}

func TestCoarseEngineAlwaysReplaces(t *testing.T) {
	before := prepare(t, `<div class="c"><span class="v">1</span></div>`)
	after := prepare(t, `<div class="c"><span class="v">2</span></div>`)

	patches := NewCoarseEngine().Diff(compID, before, after)
	if len(patches) != 1 || patches[0].Op != protocol.OpReplaceInnerHTML {
		t.Fatalf("patches = %v, want single replace-inner-html", patches)
	}
	if want := protocol.BoundarySelector(compID); patches[0].Selector != want {
		t.Errorf("Selector = %q, want %q", patches[0].Selector, want)
	}
}

func TestSelect(t *testing.T) {
	if e, err := Select(""); err != nil {
		t.Fatal(err)
	} else if _, ok := e.(*TokenEngine); !ok {
		t.Errorf("Select(\"\") = %T, want *TokenEngine", e)
	}
	if e, err := Select(EngineCoarse); err != nil {
		t.Fatal(err)
	} else if _, ok := e.(*CoarseEngine); !ok {
		t.Errorf("Select(coarse) = %T, want *CoarseEngine", e)
	}
	if _, err := Select("bogus"); err == nil {
		t.Error("Select(bogus) = nil error, want error")
	}
}

// TestDiffEquivalence applies the generated patches to the old render and
// checks the result matches the new render, for a spread of changes and
// both engines.
func TestDiffEquivalence(t *testing.T) {
	cases := []struct {
		name     string
		old, new string
	}{
		{
			"text",
			`<div class="c"><span class="v">Count: 0</span><button v-click="inc">+</button></div>`,
			`<div class="c"><span class="v">Count: 41</span><button v-click="inc">+</button></div>`,
		},
		{
			"attrs",
			`<div class="c"><input v-input="type" class="field" value="a"></div>`,
			`<div class="c"><input v-input="type" class="field wide" value="ab"></div>`,
		},
		{
			"nested",
			`<div class="c"><div class="row"><b>x</b></div></div>`,
			`<div class="c"><div class="row"><i>y</i><i>z</i></div></div>`,
		},
		{
			"structure",
			`<div class="c"><span class="v">none</span></div>`,
			`<div class="c"><span class="v">some</span><ul class="l"><li>1</li></ul></div>`,
		},
	}
	engines := map[string]Engine{
		"token":  NewTokenEngine(nil),
		"coarse": NewCoarseEngine(),
	}
	for _, tc := range cases {
		for name, e := range engines {
			t.Run(tc.name+"/"+name, func(t *testing.T) {
				before := prepare(t, tc.old)
				after := prepare(t, tc.new)
				patches := e.Diff(compID, before, after)
				got := applyPatches(t, before, patches)
				if diff := cmp.Diff(snapshot(t, after), snapshot(t, got)); diff != "" {
					t.Errorf("applied result differs from new render (-want +got):\n%s", diff)
				}
			})
		}
	}
}

// applyPatches mirrors what the browser runtime does, enough for
// equivalence checking.
func applyPatches(t *testing.T, oldHTML string, patches []protocol.Patch) string {
	t.Helper()
	roots, err := markup.ParseFragment(oldHTML)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range patches {
		target := findBySelector(roots, p.Selector)
		if target == nil {
			t.Fatalf("patch target not found: %q", p.Selector)
		}
		switch p.Op {
		case protocol.OpUpdateText:
			removeChildren(target)
			target.AppendChild(&html.Node{Type: html.TextNode, Data: p.Data})
		case protocol.OpSetAttribute:
			markup.SetAttr(target, p.Name, p.Data)
		case protocol.OpRemoveAttribute:
			removeAttr(target, p.Data)
		case protocol.OpReplaceInnerHTML:
			removeChildren(target)
			frag, err := markup.ParseFragment(p.Data)
			if err != nil {
				t.Fatal(err)
			}
			for _, f := range frag {
				target.AppendChild(f)
			}
		case protocol.OpReplaceElement:
			frag, err := markup.ParseFragment(p.Data)
			if err != nil {
				t.Fatal(err)
			}
			parent := target.Parent
			if parent == nil {
				roots = frag
				continue
			}
			for _, f := range frag {
				parent.InsertBefore(f, target)
			}
			parent.RemoveChild(target)
		}
	}
	return markup.Render(roots...)
}

func findBySelector(roots []*html.Node, sel string) *html.Node {
	// Selectors here are always [attr="value"].
	inner := strings.TrimSuffix(strings.TrimPrefix(sel, "["), "]")
	name, val, ok := strings.Cut(inner, "=")
	if !ok {
		return nil
	}
	val = strings.Trim(val, `"`)
	var found *html.Node
	markup.WalkElements(roots, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if got, ok := markup.Attr(n, name); ok && got == val {
			found = n
			return false
		}
		return true
	})
	return found
}

func removeChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

func removeAttr(n *html.Node, name string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != name {
			out = append(out, a)
		}
	}
	n.Attr = out
}

// domNode is a normalized view for structural comparison: attribute order
// is ignored, text is concatenated per element.
type domNode struct {
	Tag      string
	Attrs    []string
	Text     string
	Children []domNode
}

func snapshot(t *testing.T, htmlStr string) []domNode {
	t.Helper()
	roots, err := markup.ParseFragment(htmlStr)
	if err != nil {
		t.Fatal(err)
	}
	var out []domNode
	for _, r := range roots {
		if r.Type == html.ElementNode {
			out = append(out, snapshotNode(r))
		}
	}
	return out
}

func snapshotNode(n *html.Node) domNode {
	d := domNode{Tag: n.Data}
	for _, a := range n.Attr {
		d.Attrs = append(d.Attrs, a.Key+"="+a.Val)
	}
	sort.Strings(d.Attrs)
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			text.WriteString(c.Data)
		case html.ElementNode:
			d.Children = append(d.Children, snapshotNode(c))
		}
	}
	d.Text = text.String()
	return d
}
