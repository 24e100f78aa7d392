package settlement_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/settlement"
)

func TestRatioSchedule_Current(t *testing.T) {
	promo := domain.SplitRatio{PayeeBasisPoints: 9000, PlatformBasisPoints: 1000}
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	schedule := settlement.RatioSchedule{
		Base:      domain.DefaultSplitRatio,
		Overrides: []settlement.RatioOverride{{Ratio: promo, From: from, Until: until}},
	}

	assert.Equal(t, domain.DefaultSplitRatio, schedule.Current(from.Add(-time.Second)))
	assert.Equal(t, promo, schedule.Current(from))
	assert.Equal(t, promo, schedule.Current(until.Add(-time.Nanosecond)))
	assert.Equal(t, domain.DefaultSplitRatio, schedule.Current(until))
}

func TestRatioSchedule_OpenEndedOverride(t *testing.T) {
	promo := domain.SplitRatio{PayeeBasisPoints: 0, PlatformBasisPoints: 10000}
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	schedule := settlement.RatioSchedule{
		Base:      domain.DefaultSplitRatio,
		Overrides: []settlement.RatioOverride{{Ratio: promo, From: from}},
	}

	assert.Equal(t, promo, schedule.Current(from.AddDate(10, 0, 0)))
}

func TestRatioSchedule_Validate(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	valid := settlement.RatioSchedule{Base: domain.DefaultSplitRatio}
	assert.NoError(t, valid.Validate())

	badBase := settlement.RatioSchedule{Base: domain.SplitRatio{PayeeBasisPoints: 5000}}
	assert.ErrorIs(t, badBase.Validate(), domain.ErrInvalidSplitRatio)

	badOverride := settlement.RatioSchedule{
		Base:      domain.DefaultSplitRatio,
		Overrides: []settlement.RatioOverride{{Ratio: domain.SplitRatio{PlatformBasisPoints: 10001}, From: from}},
	}
	assert.ErrorIs(t, badOverride.Validate(), domain.ErrInvalidSplitRatio)

	inverted := settlement.RatioSchedule{
		Base:      domain.DefaultSplitRatio,
		Overrides: []settlement.RatioOverride{{Ratio: domain.DefaultSplitRatio, From: from, Until: from}},
	}
	assert.Error(t, inverted.Validate())
}
