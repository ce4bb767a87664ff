package validate

import (
	"net/mail"
	"net/url"
	"strings"

	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
)

const MinPasswordLength = 8

// Email requires a single address with a dot in the domain part.
func Email(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

func Password(password string) bool {
	return len([]rune(password)) >= MinPasswordLength
}

// Credentials checks the fields shared by every signup form and returns a
// validation error listing each bad field, or nil.
func Credentials(name, email, password string) *rest.ApiErr {
	var causes []rest.Causes
	if strings.TrimSpace(name) == "" {
		causes = append(causes, rest.Causes{Field: "name", Message: "nome é obrigatório"})
	}
	if !Email(email) {
		causes = append(causes, rest.Causes{Field: "email", Message: "email inválido"})
	}
	if !Password(password) {
		causes = append(causes, rest.Causes{Field: "password", Message: "a senha deve ter pelo menos 8 caracteres"})
	}
	if len(causes) > 0 {
		return rest.NewBadRequestValidationError("dados inválidos", causes)
	}
	return nil
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Domain extracts a bare lowercase host from a URL or host string, dropping
// the port and a leading "www.".
func Domain(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimSuffix(host, ".")
	if host == "" || !strings.Contains(host, ".") || strings.ContainsAny(host, " _") {
		return "", false
	}
	return host, true
}

// HostMatches reports whether host is domain or one of its subdomains.
func HostMatches(host, domain string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
