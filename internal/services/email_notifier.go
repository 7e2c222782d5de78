package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"bugtracker/internal/config"
	"bugtracker/internal/models"
	"bugtracker/internal/observability"
	"bugtracker/internal/serviceinterfaces"
	"bugtracker/internal/services/mailer"
	contextutils "bugtracker/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/mail.v2"
)

// Email template names
const (
	templateAssigned = "bug_assigned"
	templateSentBack = "bug_sent_back"
)

const emailLayout = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: {{.Color}}; color: white; padding: 16px; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 20px; }
        pre { white-space: pre-wrap; background: #fff; padding: 10px; border: 1px solid #ddd; }
        .footer { background-color: #eee; padding: 12px; font-size: 12px; color: #666; border-radius: 0 0 5px 5px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h2>{{.Heading}}</h2></div>
        <div class="content">
            <p><strong>{{.Bug.Title}}</strong></p>
            <p>Severity: {{if .Bug.Severity}}{{.Bug.Severity}}{{else}}unset{{end}} &middot; Status: {{.Bug.Status}}</p>
            {{if .Tester}}<p>{{.Tester}} sent this fix back:</p><pre>{{.Reason}}</pre>{{end}}
            <p>{{.Bug.Description}}</p>
            {{if .Link}}<p><a href="{{.Link}}">Open bug {{.Bug.ID}}</a></p>{{else}}<p>Bug id: {{.Bug.ID}}</p>{{end}}
        </div>
        <div class="footer"><p>Sent by the bug tracker because you are the assignee.</p></div>
    </div>
</body>
</html>`

var emailTemplate = template.Must(template.New("bug_email").Parse(emailLayout))

// EmailNotifier mails assignees about assignments and send-backs
type EmailNotifier struct {
	cfg    config.EmailConfig
	base   string
	sender mailer.Sender
	logger *observability.Logger
}

// NewEmailNotifier creates a notifier from configuration. Sending is disabled
// unless email is enabled and an SMTP host is set.
func NewEmailNotifier(cfg *config.Config, logger *observability.Logger) *EmailNotifier {
	if cfg == nil {
		panic("config cannot be nil")
	}
	var sender mailer.Sender
	if cfg.Email.Enabled {
		sender = mailer.NewSMTPSender(cfg.Email.SMTP)
	}
	return NewEmailNotifierWithSender(cfg, sender, logger)
}

// NewEmailNotifierWithSender creates a notifier that delivers through sender
func NewEmailNotifierWithSender(cfg *config.Config, sender mailer.Sender, logger *observability.Logger) *EmailNotifier {
	if cfg == nil {
		panic("config cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &EmailNotifier{
		cfg:    cfg.Email,
		base:   strings.TrimSuffix(cfg.Server.BaseURL, "/"),
		sender: sender,
		logger: logger,
	}
}

// IsEnabled returns whether email functionality is enabled
func (n *EmailNotifier) IsEnabled() bool {
	return n.cfg.Enabled && n.sender != nil
}

// recipient resolves an actor to an address: the configured mapping first, then
// the actor itself when it is an address
func (n *EmailNotifier) recipient(actor string) (string, bool) {
	if addr, ok := n.cfg.Recipients[actor]; ok && contextutils.IsValidEmail(addr) {
		return addr, true
	}
	if contextutils.IsValidEmail(actor) {
		return actor, true
	}
	return "", false
}

// NotifyAssigned tells the assignee a bug is now theirs
func (n *EmailNotifier) NotifyAssigned(ctx context.Context, bug *models.BugReport) error {
	subject := fmt.Sprintf("[%s] Assigned to you: %s", severityLabel(bug.Severity), contextutils.Truncate(bug.Title, 60))
	return n.send(ctx, templateAssigned, bug, subject, map[string]interface{}{
		"Heading": "A bug was assigned to you",
		"Color":   "#2196F3",
	})
}

// NotifySentBack tells the assignee a tester rejected the fix
func (n *EmailNotifier) NotifySentBack(ctx context.Context, bug *models.BugReport, tester, reason string) error {
	subject := fmt.Sprintf("[%s] Fix sent back: %s", severityLabel(bug.Severity), contextutils.Truncate(bug.Title, 60))
	return n.send(ctx, templateSentBack, bug, subject, map[string]interface{}{
		"Heading": "Your fix did not pass testing",
		"Color":   "#E53935",
		"Tester":  tester,
		"Reason":  reason,
	})
}

func severityLabel(s models.Severity) string {
	if s == models.SeverityUnset {
		return UnsetSeverityLabel
	}
	return string(s)
}

func (n *EmailNotifier) send(ctx context.Context, templateName string, bug *models.BugReport, subject string, data map[string]interface{}) (err error) {
	ctx, span := observability.TraceIntegrationFunction(ctx, "send_email",
		observability.AttributeBugID(bug.ID),
		attribute.String("email.template", templateName),
	)
	defer observability.FinishSpan(span, &err)

	if !n.IsEnabled() {
		n.logger.Debug(ctx, "Email disabled, skipping notification", map[string]interface{}{"bug_id": bug.ID, "template": templateName})
		return nil
	}
	if !bug.AssignedTo.Valid {
		return nil
	}
	to, ok := n.recipient(bug.AssignedTo.String)
	if !ok {
		n.logger.Warn(ctx, "No email address for assignee, skipping notification", map[string]interface{}{
			"bug_id":   bug.ID,
			"assignee": bug.AssignedTo.String,
		})
		return nil
	}

	data["Subject"] = subject
	data["Bug"] = bug
	if n.base != "" {
		data["Link"] = n.base + "/v1/bugs/" + bug.ID
	}
	body, err := renderEmail(data)
	if err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetAddressHeader("From", n.cfg.SMTP.FromAddress, n.cfg.SMTP.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := n.sender.DialAndSend(m); err != nil {
		n.logger.Error(ctx, "Failed to send email", err, map[string]interface{}{"bug_id": bug.ID, "to": to, "template": templateName})
		return contextutils.WrapWithCode(err, contextutils.ErrorCodeIntegrationFailed, "failed to send email")
	}

	n.logger.Info(ctx, "Email sent", map[string]interface{}{"bug_id": bug.ID, "to": to, "template": templateName})
	return nil
}

func renderEmail(data map[string]interface{}) (string, error) {
	var body strings.Builder
	if err := emailTemplate.Execute(&body, data); err != nil {
		return "", contextutils.WrapError(err, "failed to render email")
	}
	return body.String(), nil
}

var _ serviceinterfaces.Notifier = (*EmailNotifier)(nil)
