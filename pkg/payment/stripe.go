package payment

import (
	"context"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/refund"
)

// StripeGateway refunds against a Stripe payment intent. Amounts are
// converted to the smallest currency unit as Stripe expects.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) Refund(ctx context.Context, paymentRef string, amount float64) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentRef),
		Amount:        stripe.Int64(int64(math.Round(amount * 100))),
	}
	params.Context = ctx

	r, err := refund.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe refund: %w", err)
	}

	return &RefundResult{
		TransactionID: r.ID,
		Amount:        float64(r.Amount) / 100,
	}, nil
}
