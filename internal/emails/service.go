package emails

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/acari-app/acari-backend/pkg/db/models"
	"github.com/acari-app/acari-backend/pkg/logger"
	"github.com/acari-app/acari-backend/pkg/sendgrid"
)

const graceDateLayout = "Monday, January 2, 2006"

// Mailer is the transport used to deliver rendered messages.
type Mailer interface {
	Send(ctx context.Context, msg sendgrid.Message) error
}

// Options carries the addresses and links baked into email bodies.
type Options struct {
	AdminEmail      string
	AppURL          string
	BillingURL      string
	SupportEmail    string
	BillingFromName string
}

// Service composes and sends every transactional email Acari produces.
type Service struct {
	mailer   Mailer
	composer *composer
	opts     Options
	logg     *logger.Logger
}

func NewService(mailer Mailer, opts Options, logg *logger.Logger) (*Service, error) {
	if mailer == nil {
		return nil, errors.New("mailer is required")
	}
	c, err := newComposer()
	if err != nil {
		return nil, err
	}
	return &Service{mailer: mailer, composer: c, opts: opts, logg: logg}, nil
}

// PaymentReminder is the data for one grace-period reminder.
type PaymentReminder struct {
	To             string
	Name           string
	Tier           string
	DaysRemaining  int
	GracePeriodEnd time.Time
	Amount         string
	FailureReason  string
	Urgent         bool
}

type paymentReminderView struct {
	PaymentReminder
	Subject      string
	GraceEnd     string
	BillingURL   string
	SupportEmail string
}

// ReminderSubject picks the subject line for a reminder tier.
func ReminderSubject(tier string, daysRemaining int) string {
	switch tier {
	case "final":
		return "Final notice: your Acari subscription ends tomorrow"
	case "3-day":
		return "Reminder: 3 days left to update your payment method"
	default:
		return fmt.Sprintf("Action needed: update your payment method (%d days left)", daysRemaining)
	}
}

// SendPaymentReminder renders the escalating reminder and sends it.
func (s *Service) SendPaymentReminder(ctx context.Context, r PaymentReminder) error {
	view := paymentReminderView{
		PaymentReminder: r,
		Subject:         ReminderSubject(r.Tier, r.DaysRemaining),
		GraceEnd:        r.GracePeriodEnd.UTC().Format(graceDateLayout),
		BillingURL:      s.opts.BillingURL,
		SupportEmail:    s.opts.SupportEmail,
	}
	if strings.TrimSpace(view.Name) == "" {
		view.Name = "there"
	}
	return s.send(ctx, tplPaymentReminder, view.Subject, r.To, r.Name, s.opts.BillingFromName, view)
}

// Welcome is the data for the post-signup email.
type Welcome struct {
	To   string
	Name string
}

func (s *Service) SendWelcome(ctx context.Context, w Welcome) error {
	view := struct {
		Welcome
		Subject string
		AppURL  string
	}{Welcome: w, Subject: "Welcome to Acari", AppURL: s.opts.AppURL}
	return s.send(ctx, tplWelcome, view.Subject, w.To, w.Name, "", view)
}

// AdminNotification is an internal alert sent to the operations inbox.
type AdminNotification struct {
	Subject  string
	Message  string
	Metadata map[string]string
}

// SendAdminNotification delivers n to the configured admin address.
func (s *Service) SendAdminNotification(ctx context.Context, n AdminNotification) error {
	if strings.TrimSpace(s.opts.AdminEmail) == "" {
		return errors.New("admin notification email is not configured")
	}
	subject := "[Acari] " + n.Subject
	view := struct {
		AdminNotification
		Subject string
	}{AdminNotification: n, Subject: subject}
	return s.send(ctx, tplAdminNotification, subject, s.opts.AdminEmail, "", "", view)
}

// NotifySignup sends the welcome email and, when an admin inbox is
// configured, the new-signup alert. Both are attempted.
func (s *Service) NotifySignup(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("user is required")
	}
	err := s.SendWelcome(ctx, Welcome{To: user.Email, Name: user.FirstName})
	if strings.TrimSpace(s.opts.AdminEmail) != "" {
		err = multierr.Append(err, s.SendAdminNotification(ctx, AdminNotification{
			Subject: "New signup",
			Message: fmt.Sprintf("%s (%s) just created an account.", user.FullName(), user.Email),
			Metadata: map[string]string{
				"user_id": user.ID.String(),
				"email":   user.Email,
			},
		}))
	}
	return err
}

// SendSignupCode emails a verification code valid for ttl.
func (s *Service) SendSignupCode(ctx context.Context, to, code string, ttl time.Duration) error {
	view := struct {
		Subject          string
		Code             string
		ExpiresInMinutes int
	}{
		Subject:          "Your Acari signup code",
		Code:             code,
		ExpiresInMinutes: int(ttl.Minutes()),
	}
	return s.send(ctx, tplSignupCode, view.Subject, to, "", "", view)
}

func (s *Service) send(ctx context.Context, tpl, subject, to, toName, fromName string, data any) error {
	html, text, err := s.composer.render(tpl, data)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, sendgrid.Message{
		To:       to,
		ToName:   toName,
		FromName: fromName,
		Subject:  subject,
		HTML:     html,
		Text:     text,
	}); err != nil {
		return fmt.Errorf("send %s email: %w", tpl, err)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "template", tpl), "email.sent")
	}
	return nil
}
