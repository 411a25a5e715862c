// Package messaging hands an order summary to a chat app via deep link.
package messaging

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidDestination = errors.New("destination must contain a phone number")

// Handoff is the result of a successful hand-off: the link the shopper opens.
type Handoff struct {
	URL         string
	Destination string
}

const defaultWhatsAppBase = "https://wa.me/"

// WhatsApp builds click-to-chat links. It performs no network activity; the
// shopper's device completes the send.
type WhatsApp struct {
	baseURL string
}

func NewWhatsApp() *WhatsApp {
	return &WhatsApp{baseURL: defaultWhatsAppBase}
}

func (w *WhatsApp) Handoff(ctx context.Context, destination, text string) (Handoff, error) {
	if err := ctx.Err(); err != nil {
		return Handoff{}, err
	}
	link, number, err := w.Link(destination, text)
	if err != nil {
		return Handoff{}, err
	}
	return Handoff{URL: link, Destination: number}, nil
}

// Link returns the wa.me URL and the normalised international number.
func (w *WhatsApp) Link(destination, text string) (string, string, error) {
	number := digitsOnly(destination)
	if number == "" {
		return "", "", ErrInvalidDestination
	}
	return w.baseURL + number + "?text=" + encodeComponent(text), number, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const upperHex = "0123456789ABCDEF"

// encodeComponent escapes like a browser's encodeURIComponent: every byte
// outside A-Z a-z 0-9 and -_.!~*'() becomes %XX, so spaces are %20.
func encodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if componentSafe(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[ch>>4])
		b.WriteByte(upperHex[ch&15])
	}
	return b.String()
}

func componentSafe(ch byte) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", ch) >= 0
}
