package mail

import (
	"encoding/base64"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var blockTags = map[string]bool{
	"p": true, "div": true, "tr": true, "li": true, "table": true, "section": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// DecodeBody folds the MIME tree into plain text: text/plain leaves verbatim,
// text/html leaves reduced to their visible text, everything else skipped.
func DecodeBody(msg *RawMessage) string {
	if msg == nil {
		return ""
	}
	return decodePart(msg.Payload)
}

func decodePart(p Part) string {
	if len(p.Parts) > 0 {
		var b strings.Builder
		for _, child := range p.Parts {
			b.WriteString(decodePart(child))
		}
		return b.String()
	}

	if p.Body.Data == "" {
		return ""
	}

	raw, err := DecodeBase64URL(p.Body.Data)
	if err != nil {
		return ""
	}

	mimeType := strings.ToLower(p.MimeType)
	switch {
	case strings.HasPrefix(mimeType, "text/html"):
		return HTMLToText(raw)
	case strings.HasPrefix(mimeType, "text/plain"), mimeType == "":
		return string(raw)
	}
	return ""
}

// DecodeBase64URL accepts padded and unpadded base64url, and plain base64.
func DecodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}

// HTMLToText returns the visible text of an HTML document. Block elements and
// <br> end a line so line-anchored patterns keep working.
func HTMLToText(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head, title").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteString("\n")
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}

	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteString("\n")
	}
}

func parseDate(s string) (time.Time, error) {
	return netmail.ParseDate(strings.TrimSpace(s))
}
