package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Op identifies a patch operation. The wire value is a single character.
type Op byte

const (
	// OpUpdateText replaces an element's text content.
	OpUpdateText Op = 't'
	// OpSetAttribute adds or changes one attribute.
	OpSetAttribute Op = 'a'
	// OpRemoveAttribute removes one attribute.
	OpRemoveAttribute Op = 'r'
	// OpReplaceInnerHTML replaces an element's inner markup.
	OpReplaceInnerHTML Op = 'h'
	// OpReplaceElement replaces the element itself.
	OpReplaceElement Op = 'e'
)

// String returns a human-readable name for the op.
func (o Op) String() string {
	switch o {
	case OpUpdateText:
		return "update-text"
	case OpSetAttribute:
		return "set-attribute"
	case OpRemoveAttribute:
		return "remove-attribute"
	case OpReplaceInnerHTML:
		return "replace-inner-html"
	case OpReplaceElement:
		return "replace-element"
	default:
		return fmt.Sprintf("unknown(%c)", byte(o))
	}
}

// Valid reports whether o is a known patch op.
func (o Op) Valid() bool {
	switch o {
	case OpUpdateText, OpSetAttribute, OpRemoveAttribute,
		OpReplaceInnerHTML, OpReplaceElement:
		return true
	}
	return false
}

// Patch is one mutation against the browser document.
//
// Name is set only for attribute ops. Data carries the text, attribute
// value, or replacement markup depending on the op.
type Patch struct {
	Op       Op
	Selector string
	Name     string
	Data     string
}

// Encode produces the pipe-delimited wire form of the patch.
// Selectors and attribute names may not contain '|'; data may, because it
// is always the final field.
func (p Patch) Encode() string {
	var b strings.Builder
	b.WriteByte(byte(p.Op))
	b.WriteByte('|')
	b.WriteString(p.Selector)
	b.WriteByte('|')
	if p.Op == OpSetAttribute {
		b.WriteString(p.Name)
		b.WriteByte('|')
	}
	b.WriteString(p.Data)
	return b.String()
}

// DecodePatch parses one pipe-delimited patch string.
func DecodePatch(s string) (Patch, error) {
	if len(s) < 2 || s[1] != '|' {
		return Patch{}, fmt.Errorf("protocol: malformed patch %q", s)
	}
	op := Op(s[0])
	if !op.Valid() {
		return Patch{}, fmt.Errorf("protocol: unknown patch op %q", s[0])
	}
	rest := s[2:]
	if op == OpSetAttribute {
		parts := strings.SplitN(rest, "|", 3)
		if len(parts) != 3 {
			return Patch{}, fmt.Errorf("protocol: malformed set-attribute patch %q", s)
		}
		return Patch{Op: op, Selector: parts[0], Name: parts[1], Data: parts[2]}, nil
	}
	parts := strings.SplitN(rest, "|", 2)
	if len(parts) != 2 {
		return Patch{}, fmt.Errorf("protocol: malformed patch %q", s)
	}
	return Patch{Op: op, Selector: parts[0], Data: parts[1]}, nil
}

// PatchBatch is the outbound frame carrying every patch of one render
// cycle for one component, in application order.
type PatchBatch struct {
	ShortID string
	Patches []Patch
}

// wireBatch is the JSON wire shape. Field names are part of the protocol.
type wireBatch struct {
	Type    string   `json:"t"`
	Comp    string   `json:"c"`
	Patches []string `json:"d"`
}

// Encode serializes the batch to its JSON wire form.
func (b PatchBatch) Encode() (string, error) {
	encoded := make([]string, len(b.Patches))
	for i, p := range b.Patches {
		encoded[i] = p.Encode()
	}
	out, err := json.Marshal(wireBatch{Type: "p", Comp: b.ShortID, Patches: encoded})
	if err != nil {
		return "", fmt.Errorf("protocol: encode patch batch: %w", err)
	}
	return string(out), nil
}

// DecodePatchBatch parses a JSON patch batch frame. It is used by tests and
// by tooling that replays patch streams; the browser runtime has its own
// decoder.
func DecodePatchBatch(s string) (PatchBatch, error) {
	var w wireBatch
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return PatchBatch{}, fmt.Errorf("protocol: decode patch batch: %w", err)
	}
	if w.Type != "p" {
		return PatchBatch{}, fmt.Errorf("protocol: unexpected batch type %q", w.Type)
	}
	batch := PatchBatch{ShortID: w.Comp, Patches: make([]Patch, 0, len(w.Patches))}
	for _, raw := range w.Patches {
		p, err := DecodePatch(raw)
		if err != nil {
			return PatchBatch{}, err
		}
		batch.Patches = append(batch.Patches, p)
	}
	return batch, nil
}

// BoundarySelector returns the CSS selector addressing a component's root
// element by its full id.
func BoundarySelector(componentID string) string {
	return fmt.Sprintf(`[data-verve-id=%q]`, componentID)
}

// FullReplace builds the coarse fallback patch replacing a component's
// entire inner markup.
func FullReplace(componentID, inner string) Patch {
	return Patch{
		Op:       OpReplaceInnerHTML,
		Selector: BoundarySelector(componentID),
		Data:     inner,
	}
}
