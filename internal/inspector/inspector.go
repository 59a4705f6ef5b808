// Package inspector highlights the front-end modules of a rendered page.
//
// Every element carrying a class prefixed mod_ or var_ is a module (or a
// module variant). Scan finds them without touching the document. Apply adds
// the visible highlight and Revert takes it away again. Inspector cycles
// through the modes the way the in-page keyboard shortcut does.
package inspector

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// HighlightClass is added to every highlighted element.
	HighlightClass = "estatico-bookmarklet"

	// LogAttribute carries the labels of a highlighted element.
	LogAttribute = "data-bookmarkletlog"

	styleID = "estatico-bookmarklet-style"
)

var modulePrefixes = []string{"mod_", "var_"}

const highlightCSS = `.estatico-bookmarklet{position:relative !important;box-shadow:inset 0 0 0 4px rgba(0,100,255,0.2) !important}` +
	`.estatico-bookmarklet::after{text-transform:capitalize !important;z-index:9999999 !important;position:absolute !important;` +
	`top:-15px !important;left:0 !important;white-space:nowrap !important;background:rgba(0,100,255,0.2) !important;` +
	`color:#000 !important;font-size:10px !important;content:attr(data-bookmarkletlog) !important}`

// Mode is the state of the inspector.
type Mode int

const (
	Off Mode = iota
	Active
	Aria
)

// Next returns the mode the next toggle switches to.
func (m Mode) Next() Mode {
	switch m {
	case Off:
		return Active
	case Active:
		return Aria
	default:
		return Off
	}
}

func (m Mode) String() string {
	switch m {
	case Off:
		return "off"
	case Active:
		return "active"
	case Aria:
		return "aria"
	default:
		return "unknown"
	}
}

// Highlight is one module element found by Scan.
type Highlight struct {
	Node   *html.Node
	Labels []string
}

// Log is the value written to LogAttribute, e.g. "[ teaser ][ dark ]".
func (h Highlight) Log() string {
	var b strings.Builder
	for _, label := range h.Labels {
		b.WriteString("[ ")
		b.WriteString(label)
		b.WriteString(" ]")
	}
	return b.String()
}

// Title returns the labels capitalised the way the highlight shows them.
func (h Highlight) Title() string {
	caser := cases.Title(language.Und)
	titles := make([]string, len(h.Labels))
	for i, label := range h.Labels {
		titles[i] = caser.String(label)
	}
	return strings.Join(titles, ", ")
}

// Selector describes the element as tag#id.class for log output.
func (h Highlight) Selector() string {
	var b strings.Builder
	b.WriteString(h.Node.Data)
	if id := attr(h.Node, "id"); id != "" {
		b.WriteString("#")
		b.WriteString(id)
	}
	for _, class := range strings.Fields(attr(h.Node, "class")) {
		if class == HighlightClass {
			continue
		}
		b.WriteString(".")
		b.WriteString(class)
	}
	return b.String()
}

// Label turns a module class into its label: "mod_foo_bar" becomes
// "foo bar". ok is false for classes that are not modules.
func Label(class string) (label string, ok bool) {
	for _, prefix := range modulePrefixes {
		if strings.HasPrefix(class, prefix) {
			return strings.ReplaceAll(class[len(prefix):], "_", " "), true
		}
	}
	return "", false
}

// Scan returns every module element of doc in document order. Labels are
// listed from the element's last class to its first.
func Scan(doc *html.Node) []Highlight {
	var highlights []Highlight
	walk(doc, func(n *html.Node) {
		classes := strings.Fields(attr(n, "class"))
		var labels []string
		for i := len(classes) - 1; i >= 0; i-- {
			if label, ok := Label(classes[i]); ok {
				labels = append(labels, label)
			}
		}
		if len(labels) > 0 {
			highlights = append(highlights, Highlight{Node: n, Labels: labels})
		}
	})
	return highlights
}

// Applied records what Apply changed in a document.
type Applied struct {
	style *html.Node
	nodes []appliedNode
}

type appliedNode struct {
	node     *html.Node
	class    *string
	log      *string
	addedLog bool
}

// Apply highlights every element in highlights and adds the highlight
// stylesheet to doc. Markup the page already carried is left alone, so
// Revert restores doc exactly.
func Apply(doc *html.Node, highlights []Highlight) *Applied {
	applied := &Applied{style: addStyle(doc)}
	for _, h := range highlights {
		rec := appliedNode{node: h.Node}
		if class, changed := addClass(h.Node); changed {
			rec.class = &class
		}
		if old, ok := lookupAttr(h.Node, LogAttribute); ok {
			rec.log = &old
		} else {
			rec.addedLog = true
		}
		setAttr(h.Node, LogAttribute, h.Log())
		applied.nodes = append(applied.nodes, rec)
	}
	return applied
}

// Revert undoes the changes recorded by Apply, latest first.
func (a *Applied) Revert() {
	for i := len(a.nodes) - 1; i >= 0; i-- {
		rec := a.nodes[i]
		switch {
		case rec.addedLog:
			removeAttr(rec.node, LogAttribute)
		case rec.log != nil:
			setAttr(rec.node, LogAttribute, *rec.log)
		}
		if rec.class != nil {
			setAttr(rec.node, "class", *rec.class)
		}
	}
	if a.style != nil && a.style.Parent != nil {
		a.style.Parent.RemoveChild(a.style)
	}
	a.nodes, a.style = nil, nil
}

// Clear removes every highlight class, log attribute and highlight
// stylesheet from doc, including ones written by an earlier run. It
// assumes pages never use HighlightClass or LogAttribute themselves.
func Clear(doc *html.Node) {
	walk(doc, func(n *html.Node) {
		removeClass(n)
		removeAttr(n, LogAttribute)
	})

	var styles []*html.Node
	walk(doc, func(n *html.Node) {
		if n.DataAtom == atom.Style && attr(n, "id") == styleID {
			styles = append(styles, n)
		}
	})
	for _, n := range styles {
		n.Parent.RemoveChild(n)
	}
}

// Inspector keeps the mode between toggles.
type Inspector struct {
	mode    Mode
	applied *Applied
}

// Mode returns the current mode.
func (i *Inspector) Mode() Mode {
	return i.mode
}

// Toggle advances to the next mode and applies it to doc. It returns the
// highlighted modules, which is empty in every mode but Active.
func (i *Inspector) Toggle(doc *html.Node) []Highlight {
	i.mode = i.mode.Next()

	if i.applied != nil {
		i.applied.Revert()
		i.applied = nil
	}
	if i.mode != Active {
		return nil
	}

	highlights := Scan(doc)
	i.applied = Apply(doc, highlights)
	return highlights
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	val, _ := lookupAttr(n, key)
	return val
}

func lookupAttr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// addClass appends HighlightClass and returns the previous class value.
// changed is false when n already carried the class.
func addClass(n *html.Node) (previous string, changed bool) {
	class := attr(n, "class")
	for _, c := range strings.Fields(class) {
		if c == HighlightClass {
			return class, false
		}
	}
	setAttr(n, "class", class+" "+HighlightClass)
	return class, true
}

func removeClass(n *html.Node) {
	class := attr(n, "class")
	if trimmed, ok := strings.CutSuffix(class, " "+HighlightClass); ok {
		setAttr(n, "class", trimmed)
		return
	}

	fields := strings.Fields(class)
	kept := fields[:0]
	for _, c := range fields {
		if c != HighlightClass {
			kept = append(kept, c)
		}
	}
	if len(kept) != len(fields) {
		setAttr(n, "class", strings.Join(kept, " "))
	}
}

// addStyle inserts the highlight stylesheet into the head and returns it,
// or nil when doc already has one or has no head.
func addStyle(doc *html.Node) *html.Node {
	found := false
	walk(doc, func(n *html.Node) {
		if n.DataAtom == atom.Style && attr(n, "id") == styleID {
			found = true
		}
	})
	if found {
		return nil
	}

	head := findHead(doc)
	if head == nil {
		return nil
	}
	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
		Attr:     []html.Attribute{{Key: "id", Val: styleID}},
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: highlightCSS})
	head.AppendChild(style)
	return style
}

func findHead(doc *html.Node) *html.Node {
	var head *html.Node
	walk(doc, func(n *html.Node) {
		if head == nil && n.DataAtom == atom.Head {
			head = n
		}
	})
	return head
}
