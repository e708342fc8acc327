package emailsvc

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/escolarapp/escolar/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

type sendgridNotifier struct {
	conf       *core.Config
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.CredentialNotifier = (*sendgridNotifier)(nil)

func NewSendgridNotifier(conf *core.Config, logger core.Logger) *sendgridNotifier {
	return &sendgridNotifier{
		conf:       conf,
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

// SendCredentials delivers synchronously: the caller reports delivery status
// to its own caller, so there is no fire-and-forget here.
func (svc *sendgridNotifier) SendCredentials(_ context.Context, env core.CredentialsEnvelope) core.NotificationResult {
	msg := newCredentialsMessage(env)
	if err := msg.Render(svc.conf, svc.logger); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering credentials email: %v", err), err)
		return core.NotificationResult{}
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return core.NotificationResult{}
	}
	return svc.send(*msg)
}

func (svc *sendgridNotifier) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	for _, to := range msg.To {
		p.AddTos(svc.getSGEmail(to))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", msg.TextContent),
		sgmail.NewContent("text/html", msg.HTMLContent),
	)
	return m
}

func (svc *sendgridNotifier) getSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

func (svc *sendgridNotifier) send(msg core.EmailMessage) core.NotificationResult {
	req := sendgrid.GetRequest(svc.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("sending email: %v", err), err)
		return core.NotificationResult{}
	}
	if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf("sending email - status: %d - Body: %s", res.StatusCode, res.Body))
		return core.NotificationResult{}
	}

	ref := ""
	if ids, ok := res.Headers["X-Message-Id"]; ok && len(ids) > 0 {
		ref = ids[0]
	}
	return core.NotificationResult{Delivered: true, Reference: ref}
}
