package models

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tags produzidas pelo editor de texto rico. Qualquer outra é desembrulhada
// (o texto fica, a tag some).
var allowedTags = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Strong: true, atom.Em: true, atom.S: true, atom.U: true,
	atom.Code: true, atom.Pre: true, atom.Blockquote: true, atom.Ul: true, atom.Ol: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Hr: true, atom.Span: true, atom.Mark: true, atom.A: true,
}

// Conteúdo descartado por inteiro, inclusive o texto.
var droppedTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true,
	atom.Embed: true, atom.Noscript: true, atom.Template: true, atom.Title: true,
}

var voidTags = map[atom.Atom]bool{atom.Br: true, atom.Hr: true}

var allowedStyles = map[string]bool{
	"color": true, "background-color": true, "font-size": true, "font-family": true, "text-align": true,
}

var safeStyleValue = regexp.MustCompile(`^[#a-zA-Z0-9\s,.%()'"-]+$`)

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Br: true, atom.Li: true, atom.Pre: true, atom.Blockquote: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Div: true, atom.Ul: true, atom.Ol: true,
}

func parseFragment(s string) []*html.Node {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return nil
	}
	return nodes
}

// SanitizeDescription mantém só o subconjunto de HTML do editor.
func SanitizeDescription(s string) string {
	var b strings.Builder
	for _, n := range parseFragment(s) {
		sanitizeNode(&b, n)
	}
	return strings.TrimSpace(b.String())
}

func sanitizeNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
		return
	case html.ElementNode:
	default:
		sanitizeChildren(b, n)
		return
	}

	if droppedTags[n.DataAtom] {
		return
	}
	if !allowedTags[n.DataAtom] {
		sanitizeChildren(b, n)
		return
	}
	attrs, ok := cleanAttrs(n)
	if !ok {
		sanitizeChildren(b, n)
		return
	}

	b.WriteString("<" + n.Data)
	for _, a := range attrs {
		b.WriteString(" " + a.Key + `="` + html.EscapeString(a.Val) + `"`)
	}
	b.WriteString(">")
	if voidTags[n.DataAtom] {
		return
	}
	sanitizeChildren(b, n)
	b.WriteString("</" + n.Data + ">")
}

func sanitizeChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sanitizeNode(b, c)
	}
}

// cleanAttrs devolve ok=false quando a tag não faz sentido sem os atributos (link sem href).
func cleanAttrs(n *html.Node) ([]html.Attribute, bool) {
	var out []html.Attribute
	for _, a := range n.Attr {
		switch {
		case a.Key == "style":
			if style := cleanStyle(a.Val); style != "" {
				out = append(out, html.Attribute{Key: "style", Val: style})
			}
		case a.Key == "data-color" && n.DataAtom == atom.Mark:
			if safeStyleValue.MatchString(a.Val) {
				out = append(out, a)
			}
		case a.Key == "href" && n.DataAtom == atom.A:
			href := strings.TrimSpace(a.Val)
			lower := strings.ToLower(href)
			if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "mailto:") {
				out = append(out, html.Attribute{Key: "href", Val: href})
			}
		}
	}
	if n.DataAtom == atom.A {
		if !hasAttr(out, "href") {
			return nil, false
		}
		out = append(out, html.Attribute{Key: "rel", Val: "noopener noreferrer nofollow"})
	}
	return out, true
}

func hasAttr(attrs []html.Attribute, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

func cleanStyle(style string) string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.TrimSpace(val)
		lower := strings.ToLower(val)
		if !allowedStyles[prop] || val == "" || !safeStyleValue.MatchString(val) ||
			strings.Contains(lower, "url(") || strings.Contains(lower, "expression(") {
			continue
		}
		kept = append(kept, prop+": "+val)
	}
	return strings.Join(kept, "; ")
}

// PlainText reduz a descrição a texto corrido, para busca e prévias.
func PlainText(s string) string {
	var b strings.Builder
	for _, n := range parseFragment(s) {
		plainNode(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func plainNode(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode && droppedTags[n.DataAtom] {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		plainNode(b, c)
	}
	if n.Type == html.ElementNode && blockTags[n.DataAtom] {
		b.WriteString(" ")
	}
}
