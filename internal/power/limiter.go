// Package power keeps a frame inside the supply's current budget.
package power

import "math"

// Limiter applies a two-stage limit to 8-bit RGB frames:
//  1. per-LED white cap: scales (R,G,B) so R+G+B <= WhiteCap*255
//  2. global budget: estimates current and, above Knee*BudgetMA, halves the
//     excess; the result never exceeds BudgetMA
//
// The zero value does nothing.
type Limiter struct {
	WhiteCap  float64 // sum of channels, 0..3; 0 or >=3 disables the cap
	ChannelMA float64 // mA per channel at full scale; WS2812 is about 20
	BudgetMA  float64 // 0 disables the budget
	Knee      float64 // fraction of budget where soft limiting begins; default 0.9
}

// EstimateMA returns the frame's current draw in mA.
func (l Limiter) EstimateMA(rgb []byte) float64 {
	var sum int
	for _, v := range rgb {
		sum += int(v)
	}
	return float64(sum) / 255.0 * l.channelMA()
}

func (l Limiter) channelMA() float64 {
	if l.ChannelMA > 0 {
		return l.ChannelMA
	}
	return 20
}

// Apply limits rgb in place.
func (l Limiter) Apply(rgb []byte) {
	if l.WhiteCap > 0 && l.WhiteCap < 3 {
		limit := l.WhiteCap * 255.0
		for i := 0; i+2 < len(rgb); i += 3 {
			s := float64(rgb[i]) + float64(rgb[i+1]) + float64(rgb[i+2])
			if s > limit {
				scaleFrame(rgb[i:i+3], limit/s)
			}
		}
	}

	if l.BudgetMA <= 0 {
		return
	}
	total := l.EstimateMA(rgb)
	if total <= 0 {
		return
	}
	knee := l.Knee
	if knee <= 0 || knee >= 1 {
		knee = 0.9
	}
	kb := knee * l.BudgetMA
	if total <= kb {
		return
	}
	scaleFrame(rgb, math.Min(l.BudgetMA, kb+(total-kb)/2)/total)
}

// scaleFrame truncates so the result never exceeds the budget.
func scaleFrame(rgb []byte, s float64) {
	if s >= 1 {
		return
	}
	for i, v := range rgb {
		rgb[i] = byte(float64(v) * s)
	}
}
