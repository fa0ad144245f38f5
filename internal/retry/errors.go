package retry

import "fmt"

// ErrCircuitOpen is returned when a circuit breaker rejects a call without
// attempting the wrapped Handler.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("retry: circuit open: %s", e.Service)
}
