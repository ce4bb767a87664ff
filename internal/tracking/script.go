package tracking

import (
	"bytes"
	"embed"
	"regexp"
	"strings"
	"text/template"

	"github.com/freitasmatheusrn/pricecompare/pkg/cookie"
)

//go:embed static/script.js
var staticFS embed.FS

var (
	scriptTemplate   = template.Must(template.ParseFS(staticFS, "static/script.js"))
	affiliatePattern = regexp.MustCompile(`^aff_[0-9a-f]{6,32}$`)
)

type scriptData struct {
	Endpoint    string
	AffiliateID string
	CookieName  string
	ClickParam  string
}

func ValidAffiliateID(aid string) bool {
	return affiliatePattern.MatchString(aid)
}

// Script renders the browser snippet bound to one affiliate id.
func Script(baseURL, affiliateID string) ([]byte, error) {
	var buf bytes.Buffer
	err := scriptTemplate.Execute(&buf, scriptData{
		Endpoint:    strings.TrimRight(baseURL, "/") + "/track/event",
		AffiliateID: affiliateID,
		CookieName:  cookie.ClickID,
		ClickParam:  ClickParam,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
