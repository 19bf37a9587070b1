package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// loginRatePerSecond and loginBurst bound login attempts per email.
	loginRatePerSecond = 1
	loginBurst         = 5
)
