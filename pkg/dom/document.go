package dom

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/pkg/errors"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html"

	"gopkg.d7z.net/page-overlay/pkg/core"
)

// Document is an HTML page held in memory as a node tree.
type Document struct {
	doc *goquery.Document
}

var _ core.Document = (*Document)(nil)

func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse html")
	}
	return &Document{doc: doc}, nil
}

func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

type element struct {
	n *html.Node
}

func (e *element) OuterHTML() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, e.n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (d *Document) Query(selector string) ([]core.Node, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		rel := core.ValidationErrorf("invalid selector %q", selector)
		rel.Cause = err
		return nil, rel
	}
	found := d.doc.FindMatcher(matcher)
	result := make([]core.Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		result = append(result, &element{n: s.Get(0)})
	})
	return result, nil
}

func (d *Document) Remove(node core.Node) error {
	n, err := unwrap(node)
	if err != nil {
		return err
	}
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	return nil
}

// Replace puts the parsed markup where node is. A node already detached from
// the tree is left alone.
func (d *Document) Replace(node core.Node, markup string) error {
	n, err := unwrap(node)
	if err != nil {
		return err
	}
	parent := n.Parent
	if parent == nil {
		return nil
	}
	fragment, err := d.fragment(parent, markup)
	if err != nil {
		return err
	}
	for _, child := range fragment {
		parent.InsertBefore(child, n)
	}
	parent.RemoveChild(n)
	return nil
}

func (d *Document) InsertRelative(target core.Node, position core.Position, markup string) error {
	n, err := unwrap(target)
	if err != nil {
		return err
	}
	switch position {
	case core.PositionBefore, core.PositionAfter:
		parent := n.Parent
		if parent == nil || parent.Type != html.ElementNode {
			return core.DispatchErrorf("cannot insert %s an element without a parent element", position)
		}
		fragment, err := d.fragment(parent, markup)
		if err != nil {
			return err
		}
		ref := n
		if position == core.PositionAfter {
			ref = n.NextSibling
		}
		for _, child := range fragment {
			parent.InsertBefore(child, ref)
		}
	case core.PositionAppend, core.PositionPrepend:
		fragment, err := d.fragment(n, markup)
		if err != nil {
			return err
		}
		var ref *html.Node
		if position == core.PositionPrepend {
			ref = n.FirstChild
		}
		for _, child := range fragment {
			n.InsertBefore(child, ref)
		}
	default:
		return core.DispatchErrorf("unsupported insert position: %q", position)
	}
	return nil
}

func (d *Document) BodyMarkup() (string, error) {
	body, err := d.body()
	if err != nil {
		return "", err
	}
	return body.Html()
}

// SetBodyMarkup drops every node under body and rebuilds the subtree from
// markup.
func (d *Document) SetBodyMarkup(markup string) error {
	body, err := d.body()
	if err != nil {
		return err
	}
	n := body.Get(0)
	fragment, err := d.fragment(n, markup)
	if err != nil {
		return err
	}
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
	for _, child := range fragment {
		n.AppendChild(child)
	}
	return nil
}

func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.doc.Get(0))
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

func (d *Document) body() (*goquery.Selection, error) {
	body := d.doc.Find("body").First()
	if body.Length() == 0 {
		return nil, errors.New("document has no body")
	}
	return body, nil
}

// fragment parses markup as the children of parent, or of body when parent
// is not an element.
func (d *Document) fragment(parent *html.Node, markup string) ([]*html.Node, error) {
	if parent == nil || parent.Type != html.ElementNode {
		parent = &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: atom.Body.String()}
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, errors.Wrap(err, "parse fragment")
	}
	return nodes, nil
}

func unwrap(node core.Node) (*html.Node, error) {
	e, ok := node.(*element)
	if !ok || e.n == nil {
		return nil, errors.Errorf("node %T does not belong to this document", node)
	}
	return e.n, nil
}
