package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockElements = "p,div,br,tr,td,th,li,h1,h2,h3,h4,h5,h6,table,section"

// looksLikeHTML reports whether the body should be reduced to text first
func looksLikeHTML(body string) bool {
	return strings.Contains(strings.ToLower(body), "<html")
}

// htmlToText strips markup while keeping block boundaries as line breaks, so
// adjacent table cells do not run together into one token.
func htmlToText(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}

	doc.Find("script,style,head").Remove()
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	return strings.TrimSpace(doc.Text())
}
