package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// A strategy attempts to produce a validated field value from a rendered
// document or signals not-found. Strategies run in a fixed fallback order:
// explicit page structure first, a targeted text query second, a raw regex
// sweep last.
type strategy struct {
	name string
	fn   func(doc *goquery.Document) (string, bool)
}

var eanStrategies = []strategy{
	{name: "spec_rows", fn: eanFromSpecRows},
	{name: "definition_pairs", fn: eanFromDefinitionPairs},
	{name: "pattern", fn: eanFromPattern},
}

var priceStrategies = []strategy{
	{name: "markup", fn: priceFromMarkup},
	{name: "rendered_text", fn: priceFromRenderedText},
	{name: "pattern", fn: priceFromPattern},
}

// eanFromSpecRows reads the product specification section's labeled rows.
func eanFromSpecRows(doc *goquery.Document) (string, bool) {
	var ean string
	doc.Find(`section[data-group-name="ProductSpecification"] div.specs__row`).
		EachWithBreak(func(_ int, row *goquery.Selection) bool {
			title := strings.ToUpper(strings.TrimSpace(row.Find("dt.specs__title").Text()))
			if !strings.Contains(title, "EAN") {
				return true
			}
			value := strings.TrimSpace(row.Find("dd.specs__value").Text())
			if ValidEAN(value) {
				ean = value
				return false
			}
			return true
		})
	return ean, ean != ""
}

// eanFromDefinitionPairs scans every dt/dd pair on the page. Covers layouts
// where the spec section renders asynchronously under different class names.
func eanFromDefinitionPairs(doc *goquery.Document) (string, bool) {
	var ean string
	doc.Find("dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		title := strings.ToUpper(strings.TrimSpace(dt.Text()))
		if !strings.Contains(title, "EAN") {
			return true
		}
		value := strings.TrimSpace(dt.NextAllFiltered("dd").First().Text())
		if ValidEAN(value) {
			ean = value
			return false
		}
		return true
	})
	return ean, ean != ""
}

// eanFromPattern is the last resort: a labeled-barcode regex over the whole
// page text.
func eanFromPattern(doc *goquery.Document) (string, bool) {
	match := eanPattern.FindStringSubmatch(doc.Text())
	if match == nil {
		return "", false
	}
	ean := strings.TrimSpace(match[1])
	return ean, ValidEAN(ean)
}

// priceFromMarkup reads the price element's own first text node (the whole
// euros) plus the optional superscript fraction.
func priceFromMarkup(doc *goquery.Document) (string, bool) {
	sel := doc.Find(`span[data-test="price"]`).First()
	if sel.Length() == 0 {
		return "", false
	}
	whole := firstTextNode(sel)
	if whole == "" {
		return "", false
	}
	fraction := strings.TrimSpace(doc.Find(`sup[data-test="price-fraction"]`).First().Text())
	return NormalizePrice(whole, fraction)
}

var priceText = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})+|\d+)(?:\s*[,]\s*(\d{2}))?`)

// priceFromRenderedText parses the combined text of any price-tagged element,
// for pages where the whole/fraction split is flattened at render time.
func priceFromRenderedText(doc *goquery.Document) (string, bool) {
	sel := doc.Find(`[data-test="price"]`).First()
	if sel.Length() == 0 {
		return "", false
	}
	match := priceText.FindStringSubmatch(strings.TrimSpace(sel.Text()))
	if match == nil {
		return "", false
	}
	return NormalizePrice(match[1], match[2])
}

var euroAmount = regexp.MustCompile(`€\s*(\d{1,3}(?:\.\d{3})+|\d+)(?:[,](\d{2}))?`)

// priceFromPattern sweeps the full page text for a euro amount.
func priceFromPattern(doc *goquery.Document) (string, bool) {
	match := euroAmount.FindStringSubmatch(doc.Text())
	if match == nil {
		return "", false
	}
	return NormalizePrice(match[1], match[2])
}

// firstTextNode returns the first non-empty direct text child of a
// selection's first node, skipping nested elements like the fraction sup.
func firstTextNode(sel *goquery.Selection) string {
	if len(sel.Nodes) == 0 {
		return ""
	}
	for node := sel.Nodes[0].FirstChild; node != nil; node = node.NextSibling {
		if node.Type != html.TextNode {
			continue
		}
		if text := strings.TrimSpace(node.Data); text != "" {
			return text
		}
	}
	return ""
}
