package inspectionsync

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"inspection-sync/internal/common/errors"
)

// AlertPublisher sends operator alerts (SNS).
type AlertPublisher interface {
	PublishAlert(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error)
}

// MailSender sends the per-pass digest (SES).
type MailSender interface {
	SendHTMLEmail(ctx context.Context, from string, to []string, subject, htmlBody, textBody string) (string, error)
}

// AlertNotifier publishes an alert when a pass aborts or a create call fails.
type AlertNotifier struct {
	publisher AlertPublisher
	topicARN  string
}

func NewAlertNotifier(publisher AlertPublisher, topicARN string) *AlertNotifier {
	return &AlertNotifier{publisher: publisher, topicARN: topicARN}
}

func (n *AlertNotifier) Name() string { return "alert" }

func (n *AlertNotifier) Publish(ctx context.Context, result *RunResult) error {
	if result.Status != RunStatusAborted && result.Failed() == 0 {
		return nil
	}

	subject := fmt.Sprintf("Inspection sync %s", result.Status)
	attrs := map[string]string{
		"runId":  result.RunID,
		"status": string(result.Status),
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "Run %s finished with status %s.\n", result.RunID, result.Status)
	if result.AbortErr != nil {
		code := errors.CodeOf(result.AbortErr)
		attrs["errorCode"] = string(code)
		if errors.IsRunAbort(code) {
			fmt.Fprintf(&msg, "Aborted before any create [%s]: %s\n", code, result.AbortErr.Error())
		} else {
			fmt.Fprintf(&msg, "Stopped unexpectedly [%s]: %s\n", code, result.AbortErr.Error())
		}
	}
	for _, o := range result.Outcomes {
		if !o.Succeeded() {
			fmt.Fprintf(&msg, "Report %d -> %s failed: %s\n", o.ReportID, o.Collection, o.Error)
		}
	}

	_, err := n.publisher.PublishAlert(ctx, n.topicARN, subject, msg.String(), attrs)
	return err
}

// DigestMailer e-mails a summary of every pass that did something.
type DigestMailer struct {
	sender MailSender
	from   string
	to     []string
}

func NewDigestMailer(sender MailSender, from string, to []string) *DigestMailer {
	return &DigestMailer{sender: sender, from: from, to: to}
}

func (m *DigestMailer) Name() string { return "digest" }

func (m *DigestMailer) Publish(ctx context.Context, result *RunResult) error {
	if len(result.Outcomes) == 0 && len(result.Rejections) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Inspection sync: %d created, %d failed, %d skipped",
		result.Created(), result.Failed(), len(result.Rejections))

	var htmlBody, text strings.Builder
	fmt.Fprintf(&htmlBody, "<p>Run %s (watermark %s)</p><ul>", result.RunID, result.Watermark.At.Format(time.RFC3339))
	fmt.Fprintf(&text, "Run %s (watermark %s)\n", result.RunID, result.Watermark.At.Format(time.RFC3339))

	for _, o := range result.Outcomes {
		line := fmt.Sprintf("Report %d: %s %s", o.ReportID, o.Variant, o.RecordID)
		if !o.Succeeded() {
			line = fmt.Sprintf("Report %d: %s failed (%s)", o.ReportID, o.Variant, o.Error)
		}
		fmt.Fprintf(&htmlBody, "<li>%s</li>", html.EscapeString(line))
		text.WriteString(line + "\n")
	}
	for _, r := range result.Rejections {
		line := fmt.Sprintf("Report %d skipped [%s]: %s", r.ReportID, r.Code, r.Reason)
		fmt.Fprintf(&htmlBody, "<li>%s</li>", html.EscapeString(line))
		text.WriteString(line + "\n")
	}
	htmlBody.WriteString("</ul>")

	_, err := m.sender.SendHTMLEmail(ctx, m.from, m.to, subject, htmlBody.String(), text.String())
	return err
}
