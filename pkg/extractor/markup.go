package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var lineBreakTag = regexp.MustCompile(`(?i)<br\s*/?>`)

// StripMarkup converts HTML fragments found in precedent full text to
// plain text, keeping <br> as line breaks. Text without tags is returned
// unchanged.
func StripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}

	s = lineBreakTag.ReplaceAllString(s, "\n")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}

	return strings.TrimSpace(doc.Text())
}
