// Package transport provides the messaging channels the notifier and chat
// front end deliver through.
package transport

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mesh-intelligence/cakeday/pkg/types"
)

// ErrRecipientBlocked reports that the channel refused delivery to this
// recipient, for example because the user blocked the bot.
var ErrRecipientBlocked = errors.New("recipient blocked delivery")

// New builds the transport selected by cfg.Driver. out is used by the
// stdout driver; nil means os.Stdout.
func New(cfg types.TransportConfig, out io.Writer) (types.Transport, error) {
	switch cfg.Driver {
	case types.TransportStdout, "":
		if out == nil {
			out = os.Stdout
		}
		return NewWriter(out), nil
	case types.TransportWebhook:
		return NewWebhook(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrTransportDriverUnknown, cfg.Driver)
	}
}
