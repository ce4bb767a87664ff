package compare

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minPriceRatio     = 0.4
	maxPriceRatio     = 2.5
	minTokenOverlap   = 0.5
	minSignificantLen = 2
)

var (
	bracketPattern = regexp.MustCompile(`[\(\[\{][^\)\]\}]*[\)\]\}]`)
	spacePattern   = regexp.MustCompile(`\s+`)
	tokenPattern   = regexp.MustCompile(`[\p{L}\p{N}]+(?:[-/.][\p{L}\p{N}]+)*`)

	marketingWords = []string{
		"frete grátis", "frete gratis", "envio imediato", "pronta entrega",
		"com nota fiscal", "promoção", "promocao", "oferta", "lançamento",
		"lancamento", "original", "novo", "nova", "lacrado", "garantia",
		"free shipping", "best seller", "new",
	}

	knownBrands = []string{
		"apple", "samsung", "motorola", "xiaomi", "lg", "sony", "dell", "lenovo",
		"hp", "acer", "asus", "philips", "electrolux", "brastemp", "consul",
		"nike", "adidas", "jbl", "positivo", "multilaser", "intelbras", "nintendo",
		"microsoft", "logitech", "britania", "mondial", "arno", "tramontina",
		"oster", "panasonic", "huawei", "realme", "canon", "nikon", "gopro",
		"redragon", "hyperx", "razer", "epson", "tcl", "aoc", "edifier",
	}

	unitTokens = regexp.MustCompile(`^\d+(gb|tb|mb|mah|w|v|mm|cm|m|pol|hz|kg|g|ml|l|mp|x)$`)

	stopwords = map[string]bool{
		"de": true, "da": true, "do": true, "das": true, "dos": true, "com": true,
		"para": true, "e": true, "em": true, "the": true, "and": true, "for": true,
		"with": true, "a": true, "o": true, "um": true, "uma": true, "por": true,
	}

	accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

var (
	ErrInvalidURL = errors.New("invalid product url")
	ErrPrivateURL = errors.New("product url points to a private address")
)

// ValidateProductURL accepts absolute http(s) URLs whose host is a public name
// or a public IP literal.
func ValidateProductURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxURLLength {
		return nil, ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrInvalidURL
	}
	host := u.Hostname()
	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
			addr.IsLinkLocalMulticast() || addr.IsUnspecified() || addr.IsMulticast() {
			return nil, ErrPrivateURL
		}
		return u, nil
	}
	if !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return nil, ErrInvalidURL
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return nil, ErrPrivateURL
	}
	return u, nil
}

func validOfferURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && strings.Contains(u.Hostname(), ".")
}

// CleanTitle drops store suffixes, bracketed notes and marketing words.
func CleanTitle(title string) string {
	t := strings.TrimSpace(title)
	if i := strings.Index(t, " | "); i > 0 {
		t = t[:i]
	}
	if i := strings.LastIndex(t, " - "); i > 0 && len(strings.Fields(t[i+3:])) <= 3 {
		t = t[:i]
	}
	t = bracketPattern.ReplaceAllString(t, " ")

	lower := strings.ToLower(t)
	for _, w := range marketingWords {
		for {
			i := indexWord(lower, w)
			if i < 0 {
				break
			}
			t = t[:i] + " " + t[i+len(w):]
			lower = lower[:i] + " " + lower[i+len(w):]
		}
	}
	t = strings.Trim(spacePattern.ReplaceAllString(t, " "), " -|,")
	return t
}

// indexWord finds w in s only when it is not part of a longer word.
func indexWord(s, w string) int {
	from := 0
	for {
		i := strings.Index(s[from:], w)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(w)
		before := i == 0 || !isWordByte(s[i-1])
		after := end == len(s) || !isWordByte(s[end])
		if before && after {
			return i
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b >= 0x80
}

func fold(s string) string {
	out, _, err := transform.String(accentStripper, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

func tokens(s string) []string {
	return tokenPattern.FindAllString(fold(s), -1)
}

// ExtractBrand returns a known brand found in the title, or its first word.
func ExtractBrand(title string) string {
	toks := tokens(title)
	for _, tok := range toks {
		for _, b := range knownBrands {
			if tok == b {
				return b
			}
		}
	}
	for _, tok := range toks {
		if !stopwords[tok] && len(tok) >= minSignificantLen {
			return tok
		}
	}
	return ""
}

// ExtractModel returns the first token mixing letters and digits, skipping
// capacity and size units. A bare number of at least three digits is used
// when nothing better exists.
func ExtractModel(title string) string {
	var numeric string
	for _, tok := range tokens(title) {
		if unitTokens.MatchString(tok) {
			continue
		}
		hasDigit := strings.IndexFunc(tok, unicode.IsDigit) >= 0
		hasLetter := strings.IndexFunc(tok, unicode.IsLetter) >= 0
		switch {
		case hasDigit && hasLetter && len(tok) >= 2:
			return tok
		case hasDigit && numeric == "" && len(tok) >= 3:
			numeric = tok
		}
	}
	return numeric
}

func significantTokens(title string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range tokens(title) {
		if stopwords[tok] || len(tok) < minSignificantLen || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func compact(s string) string {
	return strings.NewReplacer("-", "", "/", "", ".", "", " ", "").Replace(fold(s))
}

// IsRelevant reports whether a candidate title describes the identified
// product: the model must appear when known, otherwise at least half of the
// significant reference tokens must.
func IsRelevant(id Identity, candidate string) bool {
	if id.Model != "" {
		return strings.Contains(compact(candidate), compact(id.Model))
	}
	ref := significantTokens(id.Title)
	if len(ref) == 0 {
		return true
	}
	have := map[string]bool{}
	for _, tok := range tokens(candidate) {
		have[tok] = true
	}
	matched := 0
	for _, tok := range ref {
		if have[tok] {
			matched++
		}
	}
	return float64(matched)/float64(len(ref)) >= minTokenOverlap
}

func medianCents(offers []Offer) int64 {
	if len(offers) == 0 {
		return 0
	}
	prices := make([]int64, len(offers))
	for i, o := range offers {
		prices[i] = o.PriceCents
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i] < prices[j] })
	mid := len(prices) / 2
	if len(prices)%2 == 0 {
		return (prices[mid-1] + prices[mid]) / 2
	}
	return prices[mid]
}

// FilterPriceRange keeps offers priced within [0.4x, 2.5x] of the reference.
// A zero reference falls back to the median of the offers.
func FilterPriceRange(offers []Offer, reference int64) []Offer {
	if reference <= 0 {
		reference = medianCents(offers)
	}
	if reference <= 0 {
		return offers
	}
	low := int64(float64(reference) * minPriceRatio)
	high := int64(float64(reference) * maxPriceRatio)
	out := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if o.PriceCents >= low && o.PriceCents <= high {
			out = append(out, o)
		}
	}
	return out
}

// Normalize runs the offer pipeline: title cleanup, validity and relevance
// filters, price range, store+price de-duplication, ascending sort and cap.
func Normalize(id Identity, referenceCents int64, offers []Offer) []Offer {
	candidates := make([]Offer, 0, len(offers))
	for _, o := range offers {
		o.Title = CleanTitle(o.Title)
		o.Store = strings.TrimSpace(o.Store)
		if o.Title == "" || o.PriceCents <= 0 || !validOfferURL(o.URL) {
			continue
		}
		if !IsRelevant(id, o.Title) {
			continue
		}
		candidates = append(candidates, o)
	}

	candidates = FilterPriceRange(candidates, referenceCents)

	seen := map[string]bool{}
	out := make([]Offer, 0, len(candidates))
	for _, o := range candidates {
		key := fmt.Sprintf("%s|%d", strings.ToLower(o.Store), o.PriceCents)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, o)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	if len(out) > maxComparisons {
		out = out[:maxComparisons]
	}
	return out
}

// IdentityFromTitle derives brand and model from a product title.
func IdentityFromTitle(title string) Identity {
	clean := CleanTitle(title)
	return Identity{Title: clean, Brand: ExtractBrand(clean), Model: ExtractModel(clean)}
}

// IdentityFromURL guesses the product from the URL slug, picking the path
// segment with the most words.
func IdentityFromURL(u *url.URL) Identity {
	var best string
	bestWords := 0
	for _, seg := range strings.Split(u.Path, "/") {
		seg = strings.TrimSuffix(seg, ".html")
		seg = strings.TrimSuffix(seg, ".htm")
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		words := strings.FieldsFunc(seg, func(r rune) bool { return r == '-' || r == '_' || r == '+' || r == ' ' })
		if len(words) > bestWords {
			best, bestWords = strings.Join(words, " "), len(words)
		}
	}
	if bestWords < 2 {
		return Identity{}
	}
	return IdentityFromTitle(best)
}

// searchQueries builds the SearchAPI queries: "brand model" first, then the
// cleaned title.
func searchQueries(id Identity) []string {
	var qs []string
	add := func(q string) {
		q = strings.TrimSpace(spacePattern.ReplaceAllString(q, " "))
		if q == "" {
			return
		}
		for _, existing := range qs {
			if strings.EqualFold(existing, q) {
				return
			}
		}
		qs = append(qs, q)
	}
	if id.Model != "" {
		add(id.Brand + " " + id.Model)
	}
	add(CleanTitle(id.Title))
	return qs
}
