package inference

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractText returns the text of the first non-empty status container,
// whitespace-collapsed and lower-cased. Containers are CSS selectors in
// priority order.
func ExtractText(html string, containers []string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("inference: parse html: %w", err)
	}

	for _, sel := range containers {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.Join(strings.Fields(s.Text()), " ")
			if text == "" {
				return true
			}
			found = text
			return false
		})
		if found != "" {
			return strings.ToLower(found), nil
		}
	}
	return "", nil
}
