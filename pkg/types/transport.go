package types

import "context"

// Transport delivers a plain text message to one recipient.
type Transport interface {
	Send(ctx context.Context, recipientID, text string) error
}
