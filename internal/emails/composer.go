package emails

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

const (
	tplPaymentReminder   = "payment_reminder"
	tplWelcome           = "welcome"
	tplAdminNotification = "admin_notification"
	tplSignupCode        = "signup_code"
)

// composer renders the HTML and plain-text parts of each email.
type composer struct {
	html map[string]*htmltemplate.Template
	text map[string]*texttemplate.Template
}

func newComposer() (*composer, error) {
	c := &composer{
		html: make(map[string]*htmltemplate.Template),
		text: make(map[string]*texttemplate.Template),
	}
	for _, name := range []string{tplPaymentReminder, tplWelcome, tplAdminNotification, tplSignupCode} {
		h, err := htmltemplate.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s html: %w", name, err)
		}
		t, err := texttemplate.ParseFS(templateFS, "templates/"+name+".txt")
		if err != nil {
			return nil, fmt.Errorf("parse %s text: %w", name, err)
		}
		c.html[name] = h
		c.text[name] = t
	}
	return c, nil
}

// render returns (html, text). Data must expose a Subject field for the layout.
func (c *composer) render(name string, data any) (string, string, error) {
	h, ok := c.html[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	var htmlBuf, textBuf bytes.Buffer
	if err := h.ExecuteTemplate(&htmlBuf, "layout", data); err != nil {
		return "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	if err := c.text[name].Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}
