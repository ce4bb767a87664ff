package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

const (
	TemplateWelcome         = "welcome"
	TemplatePasswordReset   = "password_reset"
	TemplateBusinessWelcome = "business_welcome"
	TemplateConversion      = "conversion"
	TemplatePriceDrop       = "price_drop"
	TemplateDomainVerified  = "domain_verified"
)

var subjects = map[string]string{
	TemplateWelcome:         "Bem-vindo ao PriceCompare",
	TemplatePasswordReset:   "Seu código de redefinição de senha",
	TemplateBusinessWelcome: "Sua loja foi cadastrada no PriceCompare",
	TemplateConversion:      "Nova venda registrada",
	TemplatePriceDrop:       "O preço de um favorito caiu",
	TemplateDomainVerified:  "Domínio verificado",
}

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt"))
)

type Message struct {
	Subject string
	Text    string
	HTML    string
}

// Render builds both bodies of a transactional email from the embedded templates.
func Render(name string, data any) (*Message, error) {
	subject, ok := subjects[name]
	if !ok {
		return nil, fmt.Errorf("unknown email template %q", name)
	}

	var html bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html", data); err != nil {
		return nil, fmt.Errorf("failed to render %s html: %w", name, err)
	}

	var text bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name+".txt", data); err != nil {
		return nil, fmt.Errorf("failed to render %s text: %w", name, err)
	}

	return &Message{
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

type WelcomeData struct {
	Name string
}

type PasswordResetData struct {
	Name          string
	Code          string
	ExpireMinutes int
}

type BusinessWelcomeData struct {
	Name        string
	AffiliateID string
	TrackingURL string
	ScriptURL   string
}

type ConversionData struct {
	BusinessName string
	OrderID      string
	Amount       string
	Commission   string
}

type PriceDropData struct {
	Name     string
	Title    string
	URL      string
	OldPrice string
	NewPrice string
}

type DomainVerifiedData struct {
	BusinessName string
	Domain       string
}
