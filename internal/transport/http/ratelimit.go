package http

import "time"

const rateWindow = time.Minute

// rateLimiter caps inbound frames per connection in fixed windows.
// It is used only by the connection's read loop.
type rateLimiter struct {
	limit       int
	now         func() time.Time
	windowStart time.Time
	count       int
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{limit: limit, now: time.Now}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	t := r.now()
	if t.Sub(r.windowStart) >= rateWindow {
		r.windowStart = t
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}
