package twilio

import (
	"regexp"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

var nonDigits = regexp.MustCompile(`\D`)

type Sms struct {
	from   string
	client *twilio.RestClient
}

func InitClient(accountSid, authToken string) *twilio.RestClient {
	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	})
}

func NewSMS(from string, client *twilio.RestClient) *Sms {
	return &Sms{
		from:   from,
		client: client,
	}
}

func (s *Sms) Send(to, msg string) error {
	params := &api.CreateMessageParams{}
	params.SetBody(msg)
	params.SetFrom(s.from)
	params.SetTo(FormatNumber(to))

	_, err := s.client.Api.CreateMessage(params)
	return err
}

// FormatNumber keeps numbers already in E.164 and defaults the rest to +55.
func FormatNumber(phone string) string {
	trimmed := strings.TrimSpace(phone)
	digits := nonDigits.ReplaceAllString(trimmed, "")
	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits
	}
	return "+55" + digits
}
