package types

import "errors"

var (
	// ErrDataUnavailable means the gateway could not supply bars, balance or
	// position state. The cycle is aborted and retried on the next tick.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInsufficientHistory means the bar series is shorter than the longest
	// indicator warm-up. It is reported, never returned from a cycle.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrInvalidConfiguration covers non-positive prices or balances, a
	// non-positive volatility reaching the level calculator, and unknown
	// instruments.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrOrderRejected means the venue refused the order request.
	ErrOrderRejected = errors.New("order rejected")
)

// ErrorClass maps an error onto the taxonomy above for logs and metrics.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, ErrOrderRejected):
		return "order_rejected"
	default:
		return "unknown"
	}
}

// Classified reports whether err already wraps one of the sentinels above.
func Classified(err error) bool {
	return err != nil && ErrorClass(err) != "unknown"
}
