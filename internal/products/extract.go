package products

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var ErrNoPrice = errors.New("no price found on page")

type pageData struct {
	jsonLD []string
	meta   map[string]string
	title  string
}

// ExtractProduct reads title and price from a rendered product page. JSON-LD
// Product offers win over meta tags, which win over itemprop attributes.
func ExtractProduct(doc string) (*CrawledData, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	page := pageData{meta: map[string]string{}}
	collect(root, &page)

	data := &CrawledData{}
	for _, block := range page.jsonLD {
		if name, cents, currency, ok := fromJSONLD(block); ok {
			data.Title, data.PriceCents, data.Currency = name, cents, currency
			break
		}
	}

	if data.PriceCents <= 0 {
		for _, key := range []string{"product:price:amount", "og:price:amount", "itemprop:price"} {
			if raw := page.meta[key]; raw != "" {
				if cents, err := parser.CentsFromString(raw); err == nil && cents > 0 {
					data.PriceCents = cents
					break
				}
			}
		}
	}
	if data.Currency == "" {
		for _, key := range []string{"product:price:currency", "og:price:currency", "itemprop:pricecurrency"} {
			if v := page.meta[key]; v != "" {
				data.Currency = strings.ToUpper(v)
				break
			}
		}
	}
	if data.Title == "" {
		data.Title = firstNonEmpty(page.meta["og:title"], page.meta["itemprop:name"], page.title)
	}

	if data.PriceCents <= 0 {
		return nil, ErrNoPrice
	}
	return data, nil
}

func collect(n *html.Node, page *pageData) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script:
			if strings.EqualFold(attr(n, "type"), "application/ld+json") && n.FirstChild != nil {
				page.jsonLD = append(page.jsonLD, n.FirstChild.Data)
			}
		case atom.Title:
			if page.title == "" && n.FirstChild != nil {
				page.title = strings.TrimSpace(n.FirstChild.Data)
			}
		}

		content := attr(n, "content")
		if n.DataAtom == atom.Meta {
			for _, key := range []string{"property", "name"} {
				if k := strings.ToLower(attr(n, key)); k != "" {
					setOnce(page.meta, k, content)
				}
			}
		}
		if prop := strings.ToLower(attr(n, "itemprop")); prop != "" {
			if content == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				content = n.FirstChild.Data
			}
			setOnce(page.meta, "itemprop:"+prop, content)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, page)
	}
}

func setOnce(m map[string]string, key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func fromJSONLD(block string) (name string, cents int64, currency string, ok bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(block)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", 0, "", false
	}
	product := findProduct(v)
	if product == nil {
		return "", 0, "", false
	}

	name, _ = product["name"].(string)
	for _, offer := range offerList(product["offers"]) {
		for _, key := range []string{"price", "lowPrice"} {
			if c, ok := priceCents(offer[key]); ok && c > 0 {
				cur, _ := offer["priceCurrency"].(string)
				return strings.TrimSpace(name), c, strings.ToUpper(cur), true
			}
		}
		if spec, ok := offer["priceSpecification"].(map[string]any); ok {
			if c, ok := priceCents(spec["price"]); ok && c > 0 {
				cur, _ := spec["priceCurrency"].(string)
				return strings.TrimSpace(name), c, strings.ToUpper(cur), true
			}
		}
	}
	return "", 0, "", false
}

// findProduct walks arrays and @graph containers looking for a Product node.
func findProduct(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if p := findProduct(item); p != nil {
				return p
			}
		}
	case map[string]any:
		if isProductType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "Product") || strings.EqualFold(t, "ProductGroup")
	case []any:
		for _, item := range t {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

func offerList(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		if nested, ok := t["offers"]; ok && t["price"] == nil && t["lowPrice"] == nil {
			return offerList(nested)
		}
		return []map[string]any{t}
	case []any:
		var out []map[string]any
		for _, item := range t {
			out = append(out, offerList(item)...)
		}
		return out
	}
	return nil
}

func priceCents(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return 0, false
		}
		return decimalCents(d)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err == nil {
			return decimalCents(d)
		}
		c, err := parser.CentsFromString(t)
		return c, err == nil
	}
	return 0, false
}

func decimalCents(d decimal.Decimal) (int64, bool) {
	c := d.Shift(2).Round(0)
	if c.Sign() < 0 || c.GreaterThan(decimal.NewFromInt(parser.MaxCents)) {
		return 0, false
	}
	return c.IntPart(), true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
