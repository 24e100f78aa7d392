package settlement

import (
	"fmt"
	"time"

	"github.com/feral-file/ff-settlement/internal/domain"
)

// RatioOverride is a promotional ratio active on [From, Until).
// A zero Until leaves the override open-ended.
type RatioOverride struct {
	Ratio domain.SplitRatio
	From  time.Time
	Until time.Time
}

// Active reports whether the override applies at t
func (o RatioOverride) Active(t time.Time) bool {
	if t.Before(o.From) {
		return false
	}
	return o.Until.IsZero() || t.Before(o.Until)
}

// RatioSchedule resolves the split ratio in effect at a point in time
type RatioSchedule struct {
	Base      domain.SplitRatio
	Overrides []RatioOverride
}

// Validate checks every ratio of the schedule
func (s RatioSchedule) Validate() error {
	if err := s.Base.Validate(); err != nil {
		return fmt.Errorf("base ratio: %w", err)
	}
	for i, o := range s.Overrides {
		if err := o.Ratio.Validate(); err != nil {
			return fmt.Errorf("override %d: %w", i, err)
		}
		if !o.Until.IsZero() && !o.Until.After(o.From) {
			return fmt.Errorf("override %d: until %s is not after from %s", i, o.Until, o.From)
		}
	}
	return nil
}

// Current returns the first active override at now, or the base ratio
func (s RatioSchedule) Current(now time.Time) domain.SplitRatio {
	for _, o := range s.Overrides {
		if o.Active(now) {
			return o.Ratio
		}
	}
	return s.Base
}
