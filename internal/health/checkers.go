package health

import (
	"context"
	"fmt"
)

// Probe is the connection test shared by the card control and speech
// synthesis clients.
type Probe interface {
	TestConnection(ctx context.Context) bool
}

// Service adapts a client's connection test into a readiness [Checker]. The
// check fails when the probe reports the service unreachable.
func Service(name string, p Probe) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if !p.TestConnection(ctx) {
				return fmt.Errorf("%s connection test failed", name)
			}
			return nil
		},
	}
}
