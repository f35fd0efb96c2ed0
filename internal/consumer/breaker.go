package consumer

// CircuitBreaker counts consecutive handling failures. It is not safe for
// concurrent use; the consumer loop that owns it is single-goroutine.
type CircuitBreaker struct {
	threshold   int
	consecutive int
}

// NewCircuitBreaker creates a breaker that trips at threshold consecutive
// failures
func NewCircuitBreaker(threshold int) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold}
}

// Success resets the consecutive-failure counter
func (b *CircuitBreaker) Success() {
	b.consecutive = 0
}

// Failure records one more consecutive failure
func (b *CircuitBreaker) Failure() {
	b.consecutive++
}

// Tripped reports whether the failure threshold has been reached
func (b *CircuitBreaker) Tripped() bool {
	return b.consecutive >= b.threshold
}

// Failures returns the current consecutive-failure count
func (b *CircuitBreaker) Failures() int {
	return b.consecutive
}
