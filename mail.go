package connectauth

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"strconv"
	texttemplate "text/template"
	"time"
)

// Email is one outgoing message. HTML is optional; Text is always set.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers email. It is the only way the engine talks to the outside world
// besides the store, and a failed send fails the calling flow.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// MailerFunc adapts a function to [Mailer].
type MailerFunc func(ctx context.Context, email Email) error

func (f MailerFunc) Send(ctx context.Context, email Email) error {
	return f(ctx, email)
}

type verificationMail struct {
	Name    string
	Link    string
	OTP     string
	Expires string
}

type magicLinkMail struct {
	Link    string
	Expires string
}

var (
	verificationHTML = htmltemplate.Must(htmltemplate.New("verification").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #2563eb;">Verify your email</h2>
  <p>Hi {{.Name}}, confirm your address by clicking the button below.</p>
  <div style="margin: 32px 0; text-align: center;">
    <a href="{{.Link}}" style="background-color: #2563eb; color: white; padding: 12px 24px; border-radius: 6px; text-decoration: none;">Verify Email</a>
  </div>
  <p>Or enter this code: <strong style="font-size: 20px; letter-spacing: 4px;">{{.OTP}}</strong></p>
  <p style="font-size: 14px; color: #4b5563;">The link and code expire in {{.Expires}}.</p>
  <p style="font-size: 12px; color: #6b7280;">Can't click the button? Paste this link into your browser:<br>{{.Link}}</p>
</div>`))

	verificationText = texttemplate.Must(texttemplate.New("verification").Parse(`Hi {{.Name}},

Verify your email: {{.Link}}

Or enter this code: {{.OTP}}

The link and code expire in {{.Expires}}.
`))

	magicLinkHTML = htmltemplate.Must(htmltemplate.New("magiclink").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #2563eb;">Sign in</h2>
  <p>Click the button below to sign in to your account:</p>
  <div style="margin: 32px 0; text-align: center;">
    <a href="{{.Link}}" style="background-color: #2563eb; color: white; padding: 12px 24px; border-radius: 6px; text-decoration: none;">Sign In Now</a>
  </div>
  <p style="font-size: 14px; color: #4b5563;">If you didn't request this link you can ignore this email. It expires in {{.Expires}}.</p>
  <p style="font-size: 12px; color: #6b7280;">Can't click the button? Paste this link into your browser:<br>{{.Link}}</p>
</div>`))

	magicLinkText = texttemplate.Must(texttemplate.New("magiclink").Parse(`Sign in: {{.Link}}

This link expires in {{.Expires}}.
`))
)

func renderVerificationEmail(to, subject string, data verificationMail) (Email, error) {
	return render(to, subject, verificationText, verificationHTML, data)
}

func renderMagicLinkEmail(to string, data magicLinkMail) (Email, error) {
	return render(to, "Your sign-in link", magicLinkText, magicLinkHTML, data)
}

func render(to, subject string, text *texttemplate.Template, html *htmltemplate.Template, data any) (Email, error) {
	var tb, hb bytes.Buffer
	if err := text.Execute(&tb, data); err != nil {
		return Email{}, err
	}
	if err := html.Execute(&hb, data); err != nil {
		return Email{}, err
	}
	return Email{To: to, Subject: subject, Text: tb.String(), HTML: hb.String()}, nil
}

func humanTTL(d time.Duration) string {
	switch m := int(d.Round(time.Minute) / time.Minute); {
	case m >= 60 && m%60 == 0:
		return pluralize(m/60, "hour")
	case m >= 1:
		return pluralize(m, "minute")
	default:
		return pluralize(int(d.Round(time.Second)/time.Second), "second")
	}
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
