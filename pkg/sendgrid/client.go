package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/acari-app/acari-backend/pkg/config"
	"github.com/acari-app/acari-backend/pkg/logger"
)

type api interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Message is one transactional email.
type Message struct {
	To       string
	ToName   string
	FromName string
	Subject  string
	HTML     string
	Text     string
}

// StatusError carries a non-2xx SendGrid response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sendgrid returned status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client sends mail through the SendGrid v3 API.
type Client struct {
	api      api
	from     string
	fromName string
	logg     *logger.Logger
}

// New builds a client from config. The API key and sender address are required.
func New(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.DefaultFrom) == "" {
		return nil, errors.New("sendgrid from email is required")
	}
	return &Client{
		api:      sg.NewSendClient(cfg.APIKey),
		from:     cfg.DefaultFrom,
		fromName: cfg.FromName,
		logg:     logg,
	}, nil
}

// Send delivers msg. Any status outside 2xx is returned as *StatusError.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient is required")
	}
	fromName := c.fromName
	if msg.FromName != "" {
		fromName = msg.FromName
	}
	email := mail.NewSingleEmail(
		mail.NewEmail(fromName, c.from),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Text,
		msg.HTML,
	)

	resp, err := c.api.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	if c.logg != nil {
		c.logg.Debug(c.logg.WithFields(ctx, map[string]any{
			"subject": msg.Subject,
			"status":  resp.StatusCode,
		}), "sendgrid.sent")
	}
	return nil
}
