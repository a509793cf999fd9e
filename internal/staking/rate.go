package staking

import (
	"math/big"

	"propertyBank/internal/model"
)

const (
	secondsPerYear = 365 * 24 * 60 * 60
	percentBase    = 100
)

// rateInputs holds everything one pool's reward rate depends on.
type rateInputs struct {
	BaseYieldPercent uint64
	Weight           uint64
	TotalWeight      uint64
	PoolCount        int
	PoolDecimals     uint8
	PoolPrice        model.Price
	RewardDecimals   uint8
	RewardPrice      model.Price
}

// poolRate returns reward base units earned per staked base unit per second,
// scaled by model.AccrualScale. The weight is normalised by the mean weight
// so that pools of equal price together pay the base yield:
//
//	base% * (w * N / sum(w)) * (value of one staked unit / value of one reward unit) / year
func poolRate(in rateInputs) *big.Int {
	return weightedRate(unitRate(in), in.Weight, in.TotalWeight, in.PoolCount)
}

// unitRate is the rate of a pool carrying exactly the mean weight. It
// depends on prices only.
func unitRate(in rateInputs) *big.Int {
	if in.PoolPrice.Value == nil || in.RewardPrice.Value == nil || in.RewardPrice.Value.Sign() <= 0 {
		return big.NewInt(0)
	}

	num := new(big.Int).SetUint64(in.BaseYieldPercent)
	num.Mul(num, in.PoolPrice.Value)
	num.Mul(num, pow10(in.RewardPrice.Decimals))
	num.Mul(num, pow10(in.RewardDecimals))
	num.Mul(num, model.AccrualScale)

	den := big.NewInt(percentBase)
	den.Mul(den, pow10(in.PoolPrice.Decimals))
	den.Mul(den, in.RewardPrice.Value)
	den.Mul(den, pow10(in.PoolDecimals))
	den.Mul(den, big.NewInt(secondsPerYear))

	return num.Quo(num, den)
}

// weightedRate scales a unit rate by weight * count / totalWeight.
func weightedRate(unit *big.Int, weight, totalWeight uint64, count int) *big.Int {
	if unit == nil || totalWeight == 0 || count == 0 || weight == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(unit, new(big.Int).SetUint64(weight))
	out.Mul(out, big.NewInt(int64(count)))
	return out.Quo(out, new(big.Int).SetUint64(totalWeight))
}

// accrue advances an accumulator by rate over elapsed seconds.
func accrue(acc, rate *big.Int, elapsed int64) *big.Int {
	out := new(big.Int).Set(acc)
	if elapsed <= 0 || rate.Sign() <= 0 {
		return out
	}
	return out.Add(out, new(big.Int).Mul(rate, big.NewInt(elapsed)))
}

// earned is the reward owed to principal between two accumulator readings.
func earned(principal, accNow, accThen *big.Int) *big.Int {
	delta := new(big.Int).Sub(accNow, accThen)
	if delta.Sign() <= 0 || principal.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := delta.Mul(delta, principal)
	return out.Quo(out, model.AccrualScale)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
