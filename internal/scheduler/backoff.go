package scheduler

import (
	"math"
	"math/rand"
	"time"
)

// calcBackoff doubles initial per consecutive failure up to max, with a
// +/-20% jitter so replicas do not retry in lockstep.
func calcBackoff(initial, max time.Duration, failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	pow := math.Pow(2, float64(failures-1))
	backoff := time.Duration(float64(initial) * pow)
	if backoff > max || backoff <= 0 {
		backoff = max
	}

	jitterFrac := 0.2
	jitter := time.Duration(rand.Float64()*2*jitterFrac*float64(backoff)) -
		time.Duration(jitterFrac*float64(backoff))

	return backoff + jitter
}
