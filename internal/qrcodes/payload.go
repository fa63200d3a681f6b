package qrcodes

import (
	"net/url"
	"strings"

	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
)

// PayloadType selects how a QR request is encoded.
type PayloadType string

const (
	TypeURL   PayloadType = "url"
	TypeText  PayloadType = "text"
	TypeVCard PayloadType = "vcard"
	TypeWiFi  PayloadType = "wifi"
	TypeEmail PayloadType = "email"
)

const maxTextLength = 2000

type VCard struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Organization string `json:"organization"`
	Title        string `json:"title"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	Website      string `json:"website"`
	Address      string `json:"address"`
}

type WiFi struct {
	SSID       string `json:"ssid"`
	Password   string `json:"password"`
	Encryption string `json:"encryption"`
	Hidden     bool   `json:"hidden"`
}

type Mailto struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// PayloadInput carries the fields for exactly one payload type.
type PayloadInput struct {
	Type  PayloadType `json:"type" validate:"required,oneof=url text vcard wifi email"`
	URL   string      `json:"url"`
	Text  string      `json:"text"`
	VCard *VCard      `json:"vcard"`
	WiFi  *WiFi       `json:"wifi"`
	Email *Mailto     `json:"email"`
}

// BuildPayload renders the string encoded into the QR code.
func BuildPayload(in PayloadInput) (string, error) {
	switch in.Type {
	case TypeURL:
		return buildURL(in.URL)
	case TypeText:
		text := strings.TrimSpace(in.Text)
		if text == "" || len(text) > maxTextLength {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "text must be between 1 and 2000 characters")
		}
		return text, nil
	case TypeVCard:
		if in.VCard == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "vcard fields are required")
		}
		return BuildVCard(*in.VCard)
	case TypeWiFi:
		if in.WiFi == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "wifi fields are required")
		}
		return BuildWiFi(*in.WiFi)
	case TypeEmail:
		if in.Email == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "email fields are required")
		}
		return BuildMailto(*in.Email)
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unsupported qr code type")
	}
}

func buildURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "a valid http or https url is required")
	}
	return raw, nil
}

// vcardEscaper applies RFC 2426 text escaping so a value cannot end its line
// or split into extra components.
var vcardEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, "\r\n", `\n`, "\n", `\n`, "\r", `\n`)

// BuildVCard renders a vCard 3.0 card, omitting empty fields.
func BuildVCard(c VCard) (string, error) {
	first := strings.TrimSpace(c.FirstName)
	last := strings.TrimSpace(c.LastName)
	if first == "" && last == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "a first or last name is required")
	}
	lines := []string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"N:" + vcardEscaper.Replace(last) + ";" + vcardEscaper.Replace(first),
		"FN:" + vcardEscaper.Replace(strings.TrimSpace(first+" "+last)),
	}
	optional := []struct{ key, value string }{
		{"ORG", c.Organization},
		{"TITLE", c.Title},
		{"TEL", c.Phone},
		{"EMAIL", c.Email},
		{"URL", c.Website},
		{"ADR", c.Address},
	}
	for _, field := range optional {
		if v := strings.TrimSpace(field.value); v != "" {
			lines = append(lines, field.key+":"+vcardEscaper.Replace(v))
		}
	}
	lines = append(lines, "END:VCARD")
	return strings.Join(lines, "\n"), nil
}

var wifiEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, `:`, `\:`, `"`, `\"`)

// BuildWiFi renders the WIFI: join string understood by phone cameras.
func BuildWiFi(w WiFi) (string, error) {
	if w.SSID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "ssid is required")
	}
	enc := strings.ToUpper(strings.TrimSpace(w.Encryption))
	switch enc {
	case "", "WPA", "WPA2":
		enc = "WPA"
	case "WEP":
	case "NOPASS", "NONE":
		enc = "nopass"
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "encryption must be WPA, WEP or nopass")
	}
	if enc != "nopass" && w.Password == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "password is required for secured networks")
	}

	var b strings.Builder
	b.WriteString("WIFI:T:" + enc + ";S:" + wifiEscaper.Replace(w.SSID) + ";")
	if enc != "nopass" {
		b.WriteString("P:" + wifiEscaper.Replace(w.Password) + ";")
	}
	if w.Hidden {
		b.WriteString("H:true;")
	} else {
		b.WriteString("H:false;")
	}
	b.WriteString(";")
	return b.String(), nil
}

// BuildMailto renders a mailto: link with query-escaped subject and body.
func BuildMailto(m Mailto) (string, error) {
	to := strings.TrimSpace(m.To)
	if to == "" || !strings.Contains(to, "@") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "a recipient email is required")
	}
	var params []string
	if m.Subject != "" {
		params = append(params, "subject="+escapeQuery(m.Subject))
	}
	if m.Body != "" {
		params = append(params, "body="+escapeQuery(m.Body))
	}
	out := "mailto:" + to
	if len(params) > 0 {
		out += "?" + strings.Join(params, "&")
	}
	return out, nil
}

// escapeQuery encodes spaces as %20; mail clients show "+" literally.
func escapeQuery(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
