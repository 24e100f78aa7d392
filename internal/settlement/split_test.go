package settlement_test

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-settlement/internal/domain"
	"github.com/feral-file/ff-settlement/internal/settlement"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    uint64
		wantErr bool
	}{
		{name: "whole amount", amount: "10", want: 10_000_000},
		{name: "cents", amount: "33.33", want: 33_330_000},
		{name: "smallest unit", amount: "0.000001", want: 1},
		{name: "half unit rounds up", amount: "0.0000015", want: 2},
		{name: "below half unit rounds down", amount: "1.0000004", want: 1_000_000},
		{name: "zero", amount: "0", wantErr: true},
		{name: "negative", amount: "-1", wantErr: true},
		{name: "rounds to zero", amount: "0.0000004", wantErr: true},
		{name: "overflow", amount: "18446744073709.551616", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := settlement.ToMinorUnits(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatUnits(t *testing.T) {
	assert.Equal(t, "33.33", settlement.FormatUnits(33_330_000))
	assert.Equal(t, "0.00", settlement.FormatUnits(0))
	assert.True(t, decimal.RequireFromString("26.664").Equal(settlement.FromMinorUnits(26_664_000)))
}

func TestComputeSplitPlan_DefaultRatio(t *testing.T) {
	payee := solana.NewWallet().PublicKey()
	platform := solana.NewWallet().PublicKey()

	plan, err := settlement.ComputeSplitPlan(33_330_000, payee, platform, domain.DefaultSplitRatio)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 2)
	assert.Equal(t, settlement.SplitEntry{Role: domain.SplitRolePayee, Recipient: payee, Amount: 26_664_000}, plan.Entries[0])
	assert.Equal(t, settlement.SplitEntry{Role: domain.SplitRolePlatform, Recipient: platform, Amount: 6_666_000}, plan.Entries[1])
}

func TestComputeSplitPlan_WholeAmount(t *testing.T) {
	units, err := settlement.ToMinorUnits(decimal.NewFromInt(100))
	require.NoError(t, err)

	plan, err := settlement.ComputeSplitPlan(units, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), domain.DefaultSplitRatio)
	require.NoError(t, err)

	assert.Equal(t, uint64(80_000_000), plan.Entries[0].Amount)
	assert.Equal(t, uint64(20_000_000), plan.Entries[1].Amount)
}

func TestComputeSplitPlan_PlatformOnlyRatio(t *testing.T) {
	payee := solana.NewWallet().PublicKey()
	platform := solana.NewWallet().PublicKey()

	plan, err := settlement.ComputeSplitPlan(33_330_000, payee, platform,
		domain.SplitRatio{PayeeBasisPoints: 0, PlatformBasisPoints: 10000})
	require.NoError(t, err)

	assert.Equal(t, uint64(0), plan.Amount(domain.SplitRolePayee))
	assert.Equal(t, uint64(33_330_000), plan.Amount(domain.SplitRolePlatform))
}

func TestComputeSplitPlan_RoundingFavorsPayee(t *testing.T) {
	plan, err := settlement.ComputeSplitPlan(1, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), domain.DefaultSplitRatio)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), plan.Amount(domain.SplitRolePayee))
	assert.Equal(t, uint64(0), plan.Amount(domain.SplitRolePlatform))
}

func TestComputeSplitPlan_SharesAlwaysSumToTotal(t *testing.T) {
	payee := solana.NewWallet().PublicKey()
	platform := solana.NewWallet().PublicKey()
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 2000; i++ {
		total := rng.Uint64N(1<<62) + 1
		if i%4 == 0 {
			total = rng.Uint64N(1000) + 1
		}
		platformBps := uint16(rng.UintN(10001))
		ratio := domain.SplitRatio{PayeeBasisPoints: 10000 - platformBps, PlatformBasisPoints: platformBps}

		plan, err := settlement.ComputeSplitPlan(total, payee, platform, ratio)
		require.NoError(t, err)

		payeeShare := plan.Amount(domain.SplitRolePayee)
		platformShare := plan.Amount(domain.SplitRolePlatform)
		require.Equal(t, total, payeeShare+platformShare, "total %d ratio %s", total, ratio)

		// platform share is floor(total * bps / 10000)
		want := new(big.Int).Mul(new(big.Int).SetUint64(total), big.NewInt(int64(platformBps)))
		want.Div(want, big.NewInt(10000))
		require.Equal(t, want.Uint64(), platformShare, "total %d ratio %s", total, ratio)
	}
}

func TestComputeSplitPlan_Invalid(t *testing.T) {
	payee := solana.NewWallet().PublicKey()
	platform := solana.NewWallet().PublicKey()

	_, err := settlement.ComputeSplitPlan(100, payee, platform, domain.SplitRatio{PayeeBasisPoints: 8000, PlatformBasisPoints: 1000})
	assert.ErrorIs(t, err, domain.ErrInvalidSplitRatio)

	_, err = settlement.ComputeSplitPlan(0, payee, platform, domain.DefaultSplitRatio)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestFallbackPlan(t *testing.T) {
	platform := solana.NewWallet().PublicKey()

	plan := settlement.FallbackPlan(5_000_000, platform)

	assert.Equal(t, uint64(5_000_000), plan.Total)
	assert.Equal(t, domain.SplitRatio{PayeeBasisPoints: 0, PlatformBasisPoints: 10000}, plan.Ratio)
	require.Len(t, plan.Entries, 1)
	assert.Equal(t, platform, plan.Entries[0].Recipient)
	assert.Equal(t, uint64(5_000_000), plan.Amount(domain.SplitRolePlatform))
	assert.Equal(t, uint64(0), plan.Amount(domain.SplitRolePayee))
}
