package sender

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ThrottledSender caps how many messages per second reach the wrapped
// sender. Callers block until a token is available or ctx is done.
type ThrottledSender struct {
	next    Sender
	limiter *rate.Limiter
}

func NewThrottledSender(next Sender, perSecond float64, burst int) *ThrottledSender {
	if burst < 1 {
		burst = 1
	}
	return &ThrottledSender{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (s *ThrottledSender) Send(ctx context.Context, msg Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s dispatch throttled: %w", msg.Channel, err)
	}
	return s.next.Send(ctx, msg)
}
