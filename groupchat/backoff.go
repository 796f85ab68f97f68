package groupchat

import (
	"context"
	"math"
	"time"
)

// reconnectDelay returns the wait before the given reconnect attempt
// (1-based): InitialDelay * Factor^(attempt-1) plus up to Jitter of that,
// clamped to MaxDelay. random must be in [0, 1).
func reconnectDelay(p ReconnectConfig, attempt int, random float64) time.Duration {
	p = p.withDefaults()
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.InitialDelay) * math.Pow(p.Factor, exp)
	total := math.Min(float64(p.MaxDelay), base+base*p.Jitter*random)
	return time.Duration(math.Round(total))
}

func (p ReconnectConfig) withDefaults() ReconnectConfig {
	def := DefaultReconnectConfig()
	if p.InitialDelay <= 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
