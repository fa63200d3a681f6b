package stripe

import (
	"context"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/subscription"

	pkgerrors "github.com/acari-app/acari-backend/pkg/errors"
)

// SubscriptionAPI is the subset of Stripe subscription calls the billing
// flows make. The default implementation uses the package-level API key set
// by NewClient.
type SubscriptionAPI interface {
	Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	Cancel(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
}

type subscriptionAPI struct{}

// NewSubscriptionAPI returns the live Stripe subscription client.
func NewSubscriptionAPI(client *Client) SubscriptionAPI {
	if client == nil {
		return nil
	}
	return subscriptionAPI{}
}

func (subscriptionAPI) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = ctx
	return subscription.Get(id, params)
}

func (subscriptionAPI) Update(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionParams{}
	}
	params.Context = ctx
	return subscription.Update(id, params)
}

func (subscriptionAPI) Cancel(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	if params == nil {
		params = &stripe.SubscriptionCancelParams{}
	}
	params.Context = ctx
	return subscription.Cancel(id, params)
}

// MapError converts a Stripe API error into the service taxonomy. Card
// declines (402) and rate limits (429) keep Stripe's message.
func MapError(err error, message string) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.HTTPStatusCode {
		case http.StatusPaymentRequired, http.StatusTooManyRequests:
			msg := stripeErr.Msg
			if msg == "" {
				msg = message
			}
			return pkgerrors.Wrap(pkgerrors.CodeForStatus(stripeErr.HTTPStatusCode), err, msg)
		case http.StatusNotFound:
			return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, message)
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
