package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NordCoder/Uptimer/internal/obs/retry"
)

// ErrDecode marks a message that can never be handled. Consumers do not retry it.
var ErrDecode = errors.New("decode message")

// JSONHandler decodes each message value into a fresh M before calling handle.
func JSONHandler[M any](handle func(ctx context.Context, key []byte, msg M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		var msg M
		if err := json.Unmarshal(value, &msg); err != nil {
			return retry.Permanent(fmt.Errorf("%w: %v", ErrDecode, err))
		}
		return handle(ctx, key, msg)
	}
}
