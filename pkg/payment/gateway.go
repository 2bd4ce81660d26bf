package payment

import "context"

// RefundResult is the gateway's acknowledgement of an executed refund.
type RefundResult struct {
	TransactionID string
	Amount        float64
}

// Gateway executes monetary refunds. Protocol details (webhooks, signature
// verification) live with the payment service; the core only needs this
// one call, and treats any error as retryable.
type Gateway interface {
	Refund(ctx context.Context, paymentRef string, amount float64) (*RefundResult, error)
}
