package buildbot

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// ParseBuilderList extracts builder names and their last finished build
// numbers from the one_box_per_builder page. Each table row carries the
// builder link in its first cell and a cell classed "LastBuild".
func ParseBuilderList(page string) ([]RemoteBuilder, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse builder list: %w", err)
	}

	var (
		out    []RemoteBuilder
		seen   = map[string]bool{}
		tables int
	)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "table":
				tables++
			case "tr":
				if b, ok := parseBuilderRow(n); ok && !seen[b.Name] {
					seen[b.Name] = true
					out = append(out, b)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if tables == 0 {
		return nil, fmt.Errorf("no builder table found")
	}
	return out, nil
}

func parseBuilderRow(tr *html.Node) (RemoteBuilder, bool) {
	b := RemoteBuilder{LastBuild: -1}
	for td := tr.FirstChild; td != nil; td = td.NextSibling {
		if td.Type != html.ElementNode || td.Data != "td" {
			continue
		}
		a := firstAnchor(td)
		if strings.Contains(attr(td, "class"), "LastBuild") {
			if a != nil {
				if n, err := strconv.Atoi(path.Base(attr(a, "href"))); err == nil {
					b.LastBuild = n
				}
			}
			continue
		}
		if b.Name == "" && a != nil {
			b.Name = strings.TrimSpace(anchorText(a))
		}
	}
	return b, b.Name != ""
}

func firstAnchor(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "a" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if a := firstAnchor(c); a != nil {
			return a
		}
	}
	return nil
}

func anchorText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(anchorText(c))
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
