// Package notifychannel defines the narrow collaborator interface the
// email-outbox dispatcher uses to actually deliver a pending
// domnotification.EmailOutboxRow (spec.md §4.I: "the actual send is an
// effect-worker concern"). Mirrors internal/platform/vision's shape.
package notifychannel

import "context"

// EmailSender delivers a single email and reports a provider message id
// for observability; on an error the email dispatcher reschedules the row
// with a delay that grows with its attempt count, until its attempt limit.
type EmailSender interface {
	Send(ctx context.Context, toAddress, subject, body string) (providerMessageID string, err error)
}

// Noop fabricates a deterministic message id instead of calling a real
// provider, for local dev and tests.
type Noop struct{}

func (Noop) Send(ctx context.Context, toAddress, subject, body string) (string, error) {
	return "noop_email_" + toAddress, nil
}

var _ EmailSender = Noop{}
