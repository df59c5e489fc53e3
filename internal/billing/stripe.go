package billing

import (
	"context"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeClient is a thin wrapper around stripe-go for the ambulance-fee
// hold/capture/cancel flow: a manual-capture PaymentIntent is held when an
// assignment is created and captured when it is resolved.
type StripeClient struct {
	Amount   int64
	Currency string
}

// NewStripeClient configures the global stripe key and the fee schedule.
func NewStripeClient(apiKey string, amount int64, currency string) *StripeClient {
	stripe.Key = apiKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeClient{Amount: amount, Currency: currency}
}

// Hold creates a PaymentIntent with capture_method=manual to hold the fee.
// It returns the PaymentIntent ID on success.
func (s *StripeClient) Hold(ctx context.Context, requesterID string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(s.Amount),
		Currency: stripe.String(s.Currency),
	}
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	params.AddMetadata("requester_id", requesterID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Capture finalizes a previously-held PaymentIntent.
func (s *StripeClient) Capture(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Capture(paymentIntentID, nil)
	return err
}

// Cancel releases the hold on a PaymentIntent.
func (s *StripeClient) Cancel(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}
