package emailsvc

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/escolarapp/escolar/core"
)

var (
	SentMessages = make([]core.EmailMessage, 0)
	mu           sync.Mutex
)

// consoleNotifier writes credential emails to the log instead of sending
// them. Used in DEV and in tests.
type consoleNotifier struct {
	conf          *core.Config
	logger        core.Logger
	subjPrefix    string
	disableOutput bool
}

var _ core.CredentialNotifier = (*consoleNotifier)(nil)

func NewConsoleNotifier(conf *core.Config, logger core.Logger) core.CredentialNotifier {
	return &consoleNotifier{
		conf:       conf,
		logger:     logger,
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

// NewConsoleNotifierMock silences output; sent messages are still recorded in
// SentMessages for assertions.
func NewConsoleNotifierMock(conf *core.Config, logger core.Logger) core.CredentialNotifier {
	return &consoleNotifier{
		conf:          conf,
		logger:        logger,
		subjPrefix:    "[" + conf.AppName + "] ",
		disableOutput: true,
	}
}

func (svc *consoleNotifier) SendCredentials(_ context.Context, env core.CredentialsEnvelope) core.NotificationResult {
	msg := newCredentialsMessage(env)
	if err := msg.Render(svc.conf, svc.logger); err != nil {
		svc.logger.Error(fmt.Sprintf("rendering credentials email: %v", err), err)
		return core.NotificationResult{}
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return core.NotificationResult{}
	}

	svc.print(*msg)
	mu.Lock()
	SentMessages = append(SentMessages, *msg)
	mu.Unlock()
	return core.NotificationResult{Delivered: true, Reference: "console"}
}

func (svc *consoleNotifier) print(msg core.EmailMessage) {
	if svc.disableOutput {
		return
	}
	body := new(strings.Builder)
	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.conf.DefaultFromEmail.String())
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+msg.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", svc.joinAddresses(msg.To))
	_, _ = fmt.Fprint(body, "\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", msg.TextContent)
	log.Println(body.String())
}

func (svc *consoleNotifier) joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

// ResetSentMessages clears the recorded messages between tests.
func ResetSentMessages() {
	mu.Lock()
	SentMessages = SentMessages[:0]
	mu.Unlock()
}

func newCredentialsMessage(env core.CredentialsEnvelope) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: env.RecipientName, Address: env.RecipientEmail}},
		Subject:      "Your access credentials",
		TemplateName: "guardian_credentials",
		TemplateData: env,
	}
}
