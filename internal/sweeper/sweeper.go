package sweeper

import (
	"context"
)

// Sweeper is a long-running background loop that repairs settlement state out of band
type Sweeper interface {
	// Start blocks running sweep cycles until the context is canceled or Stop is called
	Start(ctx context.Context) error

	// Stop signals the loop to exit and waits for the in-flight cycle
	Stop(ctx context.Context) error

	// Name identifies the sweeper in logs
	Name() string
}
