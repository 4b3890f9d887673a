package snapshot

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// FromHTML builds a PageSnapshot from raw HTML and its source URL (static
// mode): strips script/style/noscript, collapses whitespace, truncates body
// text, and walks anchors/forms in document order.
func FromHTML(rawHTML, pageURL string) (PageSnapshot, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return PageSnapshot{}, err
	}
	base, _ := url.Parse(pageURL)

	var title string
	var textBuf strings.Builder
	var links []Link
	var forms []Form
	linkIndex := 0

	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return // drop subtree entirely
			case "title":
				if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a":
				if len(links) < maxLinks {
					href := attrVal(n, "href")
					text := collapseWhitespace(textContent(n))
					abs := resolveHref(base, href)
					if !isNoiseLink(abs, text) {
						links = append(links, Link{
							Text:  truncate(text, maxLinkText),
							Href:  abs,
							Index: linkIndex,
						})
						linkIndex++
					}
				}
			case "form":
				if len(forms) < maxForms {
					forms = append(forms, extractForm(n))
				}
			}
		}
		if n.Type == html.TextNode && !skip {
			textBuf.WriteString(n.Data)
			textBuf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
	}
	walk(doc, false)

	var axBuf strings.Builder
	axBudget := maxAXYAML
	body := findBody(doc)
	axSummary(body, 0, &axBuf, &axBudget)

	return PageSnapshot{
		URL:               pageURL,
		Title:             truncate(title, maxTitleLen),
		Text:              truncate(collapseWhitespace(textBuf.String()), maxTextLen),
		Links:             links,
		Forms:             forms,
		AccessibilityYAML: axBuf.String(),
	}, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func extractForm(formNode *html.Node) Form {
	var inputs []FormInput
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(inputs) >= maxInputs {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "input", "textarea", "select":
				id := attrVal(n, "id")
				name := attrVal(n, "name")
				typ := attrVal(n, "type")
				if typ == "" {
					typ = n.Data
				}
				inputs = append(inputs, FormInput{
					Name:        name,
					Type:        typ,
					Placeholder: attrVal(n, "placeholder"),
					Selector:    selectorFor(id, name, n.Data),
				})
				return // don't descend into form controls
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(formNode)
	return Form{Inputs: inputs}
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func resolveHref(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "#") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
