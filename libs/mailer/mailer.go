// Package mailer sends transactional e-mail through a pluggable provider.
package mailer

import (
	"context"
	"errors"
	"strings"
)

// ErrNoRecipients is returned when a message has no usable To address.
var ErrNoRecipients = errors.New("mailer: message has no recipients")

// Message is one outgoing e-mail. Tags are passed to providers that support
// message tagging and ignored otherwise.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
	Tags    map[string]string
}

// SendResult contains the response from the provider.
type SendResult struct {
	ProviderMessageID string
}

// Provider sends emails via a specific backend.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) (SendResult, error)
}

// Mailer fills in defaults and delegates to a Provider.
type Mailer struct {
	provider    Provider
	fromAddress string
}

func New(provider Provider, fromAddress string) *Mailer {
	return &Mailer{
		provider:    provider,
		fromAddress: fromAddress,
	}
}

// Send delivers msg. An empty From falls back to the default sender and
// blank recipients are dropped.
func (m *Mailer) Send(ctx context.Context, msg Message) (SendResult, error) {
	if msg.From == "" {
		msg.From = m.fromAddress
	}
	msg.To = cleanRecipients(msg.To)
	if len(msg.To) == 0 {
		return SendResult{}, ErrNoRecipients
	}
	return m.provider.Send(ctx, msg)
}

func (m *Mailer) ProviderName() string {
	return m.provider.Name()
}

// SplitRecipients parses a comma separated address list.
func SplitRecipients(raw string) []string {
	return cleanRecipients(strings.Split(raw, ","))
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, addr := range in {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		out = append(out, addr)
	}
	return out
}
