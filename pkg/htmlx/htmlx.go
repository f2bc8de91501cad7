// Package htmlx extracts readable text from html documents.
package htmlx

import (
	"fmt"
	"iter"
	"strings"

	"golang.org/x/net/html"
)

// cspell:words htmlx

// Text parses source as an html document and returns the text it displays.
// Text inside <script>, <style> and <head> elements is ignored.
// Runs of whitespace are collapsed into a single space.
func Text(source string) (string, error) {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var words []string
	for node := range IterTree(root) {
		if node.Type != html.TextNode || hidden(node) {
			continue
		}
		words = append(words, strings.Fields(node.Data)...)
	}
	return strings.Join(words, " "), nil
}

// hidden checks if node is contained in an element that is not displayed.
func hidden(node *html.Node) bool {
	for parent := node.Parent; parent != nil; parent = parent.Parent {
		if parent.Type != html.ElementNode {
			continue
		}
		switch parent.Data {
		case "script", "style", "head", "noscript", "template":
			return true
		}
	}
	return false
}

// IterTree iterates over all nodes contained in the tree starting at node, in document order.
// Nodes are yielded before their children; nil nodes are never yielded.
func IterTree(node *html.Node) iter.Seq[*html.Node] {
	return func(yield func(*html.Node) bool) {
		iterTree(node, yield)
	}
}

func iterTree(node *html.Node, f func(node *html.Node) bool) bool {
	if node == nil {
		return true
	}

	if !f(node) {
		return false
	}

	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if !iterTree(child, f) {
			return false
		}
	}
	return true
}
