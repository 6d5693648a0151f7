package main

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"

	"civicreports/libs/mailer"
)

func (a *App) buildNewReportEmail(report Report) mailer.Message {
	subject := fmt.Sprintf("New %s report: %s", report.Category, report.Title)
	adminURL := a.cfg.PublicBaseURL + "/admin?category=" + url.QueryEscape(report.Category)

	location := "Not captured"
	if report.Location != nil {
		location = strconv.FormatFloat(report.Location.Lat, 'f', 4, 64) + ", " + strconv.FormatFloat(report.Location.Lon, 'f', 4, 64)
	}
	created := a.formatTimestamp(report.CreatedAt)

	body := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; line-height: 1.6; color: #333;">
			<h2>%s</h2>
			<p><strong>Category:</strong> %s<br/>
			<strong>Location:</strong> %s<br/>
			<strong>Submitted:</strong> %s</p>
			<p>%s</p>
			<p style="margin: 30px 0;">
				<a href="%s" style="background-color: #2563eb; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; font-weight: bold; display: inline-block;">
					Open admin dashboard
				</a>
			</p>
			<p style="font-size: 12px; color: #999;">Report %s</p>
		</div>
	`,
		html.EscapeString(report.Title),
		html.EscapeString(report.Category),
		location,
		created,
		html.EscapeString(report.Description),
		html.EscapeString(adminURL),
		report.ID,
	)

	text := fmt.Sprintf(
		"New report %s\n\nTitle: %s\nCategory: %s\nLocation: %s\nSubmitted: %s\n\n%s\n\nAdmin dashboard: %s",
		report.ID, report.Title, report.Category, location, created, report.Description, adminURL,
	)

	return mailer.Message{
		To:      mailer.SplitRecipients(a.cfg.NotifyEmailTo),
		ReplyTo: a.cfg.NotifyReplyTo,
		Subject: subject,
		HTML:    body,
		Text:    text,
		Tags:    map[string]string{"kind": "new_report"},
	}
}

// notifyNewReport sends the new-report e-mail in the background. Failures
// are logged and never reach the submitter.
func (a *App) notifyNewReport(report Report) {
	if a.cfg.NotifyEmailTo == "" || a.mailer == nil {
		return
	}
	msg := a.buildNewReportEmail(report)

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()
		result, err := a.mailer.Send(ctx, msg)
		if err != nil {
			a.log.Error("failed to send new report notification", "id", report.ID, "err", err)
			return
		}
		a.log.Info("new report notification sent", "id", report.ID, "provider", a.mailer.ProviderName(), "message_id", result.ProviderMessageID)
	}()
}
