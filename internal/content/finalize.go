package content

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pharmaboost/pharmaboost/internal/cmn/logger"
)

// Finalize normalizes an HTML body for the storefront: paragraphs with no
// text are removed, lists without items are removed, and an empty trailing
// paragraph is appended. Empty or unparseable input yields a placeholder
// paragraph naming the product.
func Finalize(ctx context.Context, htmlContent, productName string) string {
	if strings.TrimSpace(htmlContent) == "" {
		logger.Warn(ctx, "HTML content for finalization is empty", "product", productName)
		return fmt.Sprintf("<p>Content for %s could not be generated.</p>", productName)
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(htmlContent), body)
	if err != nil {
		logger.Error(ctx, "Failed to parse HTML for finalization", "product", productName, "err", err)
		return htmlContent
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}

	prune(body)
	body.AppendChild(&html.Node{Type: html.ElementNode, Data: "p", DataAtom: atom.P})

	var sb strings.Builder
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			logger.Error(ctx, "Failed to render finalized HTML", "product", productName, "err", err)
			return htmlContent
		}
	}
	return sb.String()
}

func prune(n *html.Node) {
	c := n.FirstChild
	for c != nil {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.P:
				if strings.TrimSpace(textContent(c)) == "" {
					n.RemoveChild(c)
					c = next
					continue
				}
			case atom.Ul, atom.Ol:
				if !hasListItem(c) {
					n.RemoveChild(c)
					c = next
					continue
				}
			}
		}
		prune(c)
		c = next
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func hasListItem(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			return true
		}
		if hasListItem(c) {
			return true
		}
	}
	return false
}
