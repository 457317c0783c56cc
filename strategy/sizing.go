package strategy

import "math"

// ComputeStopLoss implements §4.4.3 step 1. currentPrice is the price the
// entry is executing at; firstPrice/firstPriceKnown carry the first
// observed post-alert price for the stop_loss_from_open variant.
func (e ExitRules) ComputeStopLoss(currentPrice, firstPrice float64, firstPriceKnown bool) float64 {
	if e.StopLossFromOpen && firstPriceKnown {
		stop := firstPrice * (1 - e.StopLossPct/100)
		if stop < currentPrice {
			return stop
		}
		// sanity-clamp: the open-derived stop must not exceed current
		// price, else fall back to a current-price-based stop.
	}
	return currentPrice * (1 - e.StopLossPct/100)
}

// ComputeTakeProfit implements §4.4.3 step 2 (and is recomputed on fill
// per §4.4.4 step 2).
func (e ExitRules) ComputeTakeProfit(price float64) float64 {
	return price * (1 + e.TakeProfitPct/100)
}

// ComputeShares implements the full §4.4.3 step 3 sizing algorithm.
//
//   - fixed mode: max(1, floor(stake / price))
//   - volume_pct mode: reference volume is the last completed candle's
//     volume, or (if no completed candle exists yet) the building candle's
//     volume extrapolated to a full minute via actual_vol * (60/elapsed),
//     guarded on elapsed > 0. shares_from_volume = floor(reference *
//     pct/100), capped by floor(max_stake/price).
//
// Returns shares == 0 to signal "abort and release interest if idle".
func (s SizingRules) ComputeShares(price float64, completed []CandleBar, building CandleBar, hasBuilding bool, elapsedInBuilding float64) float64 {
	if price <= 0 {
		return 0
	}

	if s.Mode == SizingFixed {
		shares := math.Floor(s.FixedStake / price)
		if shares < 1 {
			shares = 1
		}
		return shares
	}

	var referenceVol float64
	switch {
	case len(completed) > 0:
		referenceVol = completed[len(completed)-1].Volume
	case hasBuilding && elapsedInBuilding > 0:
		referenceVol = building.Volume * (60 / elapsedInBuilding)
	default:
		return 0
	}

	sharesFromVolume := math.Floor(referenceVol * s.VolumePct / 100)
	maxShares := math.Floor(s.MaxStake / price)
	shares := math.Min(sharesFromVolume, maxShares)
	if shares <= 0 {
		return 0
	}
	return shares
}
