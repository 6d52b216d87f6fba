package inventory

import (
	"bytes"
	"io"
	"strings"

	"sjsage522/inventoryscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed listing page
type Page struct {
	Number int
	Doc    *goquery.Document
}

// NewDocument parses HTML from a reader into a goquery document
func NewDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.NewParsing("document", "failed to parse HTML", err)
	}
	return doc, nil
}

// ParseHTML is NewDocument for an in-memory body
func ParseHTML(body []byte) (*goquery.Document, error) {
	return NewDocument(bytes.NewReader(body))
}

// Text returns the visible text of the selection with every text node
// separated by a single space and runs of whitespace collapsed.
func Text(sel *goquery.Selection) string {
	var sb strings.Builder
	for _, n := range sel.Nodes {
		writeText(&sb, n)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "template":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
}
