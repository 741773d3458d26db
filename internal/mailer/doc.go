// Package mailer provides the two [connectauth.Mailer] implementations the server
// binary chooses between: an SMTP sender built on gomail and a log-only sender for
// development.
package mailer
