package statussync

import (
	"math"
	"math/rand"
	"time"
)

// backoffDelay doubles initial per attempt up to maxDelay and adds up to ±50%
// jitter. attempt starts at 1.
func backoffDelay(attempt int, initial, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := float64(initial) * math.Pow(2, float64(attempt-1))
	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}
	jitter := (rand.Float64() - 0.5) * backoff
	return time.Duration(backoff + jitter)
}
