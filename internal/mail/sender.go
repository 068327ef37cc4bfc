package mail

import (
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Client abstracts the transactional-email provider so the mailer can be
// tested with a call-counting fake.
type Client interface {
	Send(m *sgmail.SGMailV3) (*rest.Response, error)
}

type sendGridClient struct{ apiKey string }

func NewSendGridClient(apiKey string) Client {
	return &sendGridClient{apiKey: apiKey}
}

func (c *sendGridClient) Send(m *sgmail.SGMailV3) (*rest.Response, error) {
	return sendgrid.NewSendClient(c.apiKey).Send(m)
}
