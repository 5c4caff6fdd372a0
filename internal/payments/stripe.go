// Package payments wraps Stripe Checkout: hosted payment sessions for
// tour bookings and signature verification for the completion webhook.
package payments

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/wanderpeak/tours-api/internal/domain"
	"github.com/wanderpeak/tours-api/pkg/config"
)

type Checkout struct {
	webhookSecret string
	baseURL       string
}

func NewCheckout(cfg config.StripeConfig, baseURL string) *Checkout {
	stripe.Key = cfg.SecretKey
	return &Checkout{
		webhookSecret: cfg.WebhookSecret,
		baseURL:       baseURL,
	}
}

// NewSession creates a hosted checkout session for one tour. The tour ID
// rides along as the client reference so the webhook can attribute the
// payment without trusting redirect query parameters.
func (c *Checkout) NewSession(user *domain.User, tour *domain.Tour) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(c.baseURL + "/my-tours"),
		CancelURL:         stripe.String(c.baseURL + "/tour/" + tour.Slug),
		CustomerEmail:     stripe.String(user.Email),
		ClientReferenceID: stripe.String(strconv.FormatInt(tour.ID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(int64(tour.Price * 100)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(tour.Name + " Tour"),
						Description: stripe.String(tour.Summary),
						Images:      []*string{stripe.String(c.baseURL + "/img/tours/" + tour.ImageCover)},
					},
				},
			},
		},
	}
	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return sess, nil
}

// CompletedPayment is the attributed result of a finished checkout.
type CompletedPayment struct {
	TourID int64
	Email  string
	// Price is the amount actually charged, in major units.
	Price float64
}

// ParseCompletedSession verifies the webhook signature and, for
// checkout.session.completed events, extracts the payment. Other event
// types return (nil, nil).
func (c *Checkout) ParseCompletedSession(payload []byte, signature string) (*CompletedPayment, error) {
	event, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	if event.Type != "checkout.session.completed" {
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal checkout session: %w", err)
	}
	tourID, err := strconv.ParseInt(sess.ClientReferenceID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad client reference %q: %w", sess.ClientReferenceID, err)
	}
	return &CompletedPayment{
		TourID: tourID,
		Email:  sess.CustomerEmail,
		Price:  float64(sess.AmountTotal) / 100,
	}, nil
}
