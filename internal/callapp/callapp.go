// Package callapp builds the URLs that hand a phone number to a calling app.
package callapp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Napageneral/bubble/internal/phone"
)

type Method string

const (
	Ask      Method = "ask"
	System   Method = "system"
	FaceTime Method = "facetime"
	Skype    Method = "skype"
	WhatsApp Method = "whatsapp"
	Telegram Method = "telegram"
	Viber    Method = "viber"
)

// Apps lists the concrete call targets, system first.
var Apps = []Method{System, FaceTime, Skype, WhatsApp, Telegram, Viber}

var labels = map[Method]string{
	System:   "Phone",
	FaceTime: "FaceTime",
	Skype:    "Skype",
	WhatsApp: "WhatsApp",
	Telegram: "Telegram",
	Viber:    "Viber",
}

// ParseMethod returns Ask for anything it does not recognise.
func ParseMethod(s string) Method {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if m == Ask {
		return Ask
	}
	if _, ok := labels[m]; ok {
		return m
	}
	return Ask
}

func (m Method) Label() string {
	if l, ok := labels[m]; ok {
		return l
	}
	return "Ask"
}

// URL returns the launch URL for number with method. Ask has no URL of its
// own and falls back to the system dialer, as does an unusable number.
func URL(m Method, number string) (string, error) {
	n := phone.Normalize(number)
	if n == "" {
		return "", fmt.Errorf("no dialable digits in %q", number)
	}
	bare := strings.TrimPrefix(n, "+")
	switch m {
	case FaceTime:
		return "facetime://" + n, nil
	case Skype:
		return "skype:" + n + "?call", nil
	case WhatsApp:
		return "whatsapp://send?phone=" + url.QueryEscape(n), nil
	case Telegram:
		return "tg://msg?to=" + url.QueryEscape(bare), nil
	case Viber:
		return "viber://contact?number=" + url.QueryEscape(bare), nil
	default:
		return "tel:" + n, nil
	}
}
