package translate

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CompareMarkup checks that src and out contain the same number of each
// element type. It is a soft check: a model that rewrites a sentence may
// still be fine, but lost or invented tags usually mean broken markup.
func CompareMarkup(src, out string) error {
	srcTags, err := tagCounts(src)
	if err != nil {
		return fmt.Errorf("parse source html: %w", err)
	}
	outTags, err := tagCounts(out)
	if err != nil {
		return fmt.Errorf("parse translated html: %w", err)
	}

	for tag, n := range srcTags {
		if outTags[tag] != n {
			return fmt.Errorf("<%s> count changed from %d to %d", tag, n, outTags[tag])
		}
	}
	for tag, n := range outTags {
		if _, ok := srcTags[tag]; !ok {
			return fmt.Errorf("<%s> added %d times", tag, n)
		}
	}
	return nil
}

func tagCounts(html string) (map[string]int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		counts[goquery.NodeName(s)]++
	})
	return counts, nil
}

// visibleText strips tags so that detection sees only prose.
func visibleText(content string) string {
	if !strings.Contains(content, "<") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.TrimSpace(doc.Text())
}
