package batch

import (
	"context"
	"time"
)

// SetClock replaces the controller's sleep and time source.
func (c *Controller) SetClock(sleep func(ctx context.Context, d time.Duration), now func() time.Time) {
	c.sleep = sleep
	c.now = now
}
