package settlement

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/feral-file/ff-settlement/internal/domain"
)

// SplitEntry is one recipient's share of a settlement
type SplitEntry struct {
	Role      domain.SplitRole
	Recipient solana.PublicKey
	Amount    uint64
}

// SplitPlan is the division of a settlement total between recipients.
// The entry amounts always sum to Total.
type SplitPlan struct {
	Total   uint64
	Ratio   domain.SplitRatio
	Entries []SplitEntry
}

// Amount returns the share assigned to a role
func (p *SplitPlan) Amount(role domain.SplitRole) uint64 {
	var total uint64
	for _, e := range p.Entries {
		if e.Role == role {
			total += e.Amount
		}
	}
	return total
}

// ToMinorUnits converts a whole-unit amount to token minor units, rounding half away from zero
func ToMinorUnits(amount decimal.Decimal) (uint64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}

	minor := amount.Shift(domain.USDC_DECIMALS).Round(0)
	if !minor.IsPositive() {
		return 0, fmt.Errorf("%w: %s rounds to zero units", domain.ErrInvalidAmount, amount)
	}

	units := minor.BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows", domain.ErrInvalidAmount, amount)
	}

	return units.Uint64(), nil
}

// FormatUnits renders minor units as a whole-unit decimal string
func FormatUnits(units uint64) string {
	return FromMinorUnits(units).StringFixed(2)
}

// FromMinorUnits converts minor units back to a whole-unit amount
func FromMinorUnits(units uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(units), -domain.USDC_DECIMALS)
}

// ComputeSplitPlan divides total between payee and platform.
// The platform share is floor(total * platformBps / 10000) and the payee receives the remainder.
func ComputeSplitPlan(total uint64, payee, platform solana.PublicKey, ratio domain.SplitRatio) (*SplitPlan, error) {
	if err := ratio.Validate(); err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: zero total", domain.ErrInvalidAmount)
	}

	hi, lo := bits.Mul64(total, uint64(ratio.PlatformBasisPoints))
	platformShare, _ := bits.Div64(hi, lo, domain.BASIS_POINTS_DENOMINATOR)
	payeeShare := total - platformShare

	return &SplitPlan{
		Total: total,
		Ratio: ratio,
		Entries: []SplitEntry{
			{Role: domain.SplitRolePayee, Recipient: payee, Amount: payeeShare},
			{Role: domain.SplitRolePlatform, Recipient: platform, Amount: platformShare},
		},
	}, nil
}

// FallbackPlan routes the full total to the platform
func FallbackPlan(total uint64, platform solana.PublicKey) *SplitPlan {
	return &SplitPlan{
		Total: total,
		Ratio: domain.SplitRatio{PayeeBasisPoints: 0, PlatformBasisPoints: domain.BASIS_POINTS_DENOMINATOR},
		Entries: []SplitEntry{
			{Role: domain.SplitRolePlatform, Recipient: platform, Amount: total},
		},
	}
}
