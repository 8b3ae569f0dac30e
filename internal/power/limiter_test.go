package power

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func white(n int) []byte {
	buf := make([]byte, n*3)
	for i := range buf {
		buf[i] = 255
	}
	return buf
}

func TestZeroLimiterIsNoop(t *testing.T) {
	buf := white(4)
	Limiter{}.Apply(buf)
	assert.Equal(t, white(4), buf)
}

func TestBudgetClamp(t *testing.T) {
	// 10 LEDs all white: 10 * 60 = 600 mA before limiting
	buf := white(10)
	l := Limiter{ChannelMA: 20, BudgetMA: 300, Knee: 0.9}
	assert.InDelta(t, 600, l.EstimateMA(buf), 1e-9)

	l.Apply(buf)
	assert.LessOrEqual(t, l.EstimateMA(buf), 300.0)
	assert.Greater(t, l.EstimateMA(buf), 290.0)
}

func TestUnderKneeUntouched(t *testing.T) {
	buf := white(10)
	l := Limiter{ChannelMA: 20, BudgetMA: 1000}
	l.Apply(buf)
	assert.Equal(t, white(10), buf)
}

func TestSoftKnee(t *testing.T) {
	// 600 mA against a 630 mA budget: ratio 0.95, halfway through the knee
	buf := white(10)
	l := Limiter{ChannelMA: 20, BudgetMA: 630, Knee: 0.9}
	l.Apply(buf)
	got := l.EstimateMA(buf)
	assert.Less(t, got, 600.0)
	assert.LessOrEqual(t, got, 630.0)
}

func TestWhiteCap(t *testing.T) {
	buf := white(1) // sum = 3*255
	Limiter{WhiteCap: 1.5}.Apply(buf)
	sum := int(buf[0]) + int(buf[1]) + int(buf[2])
	assert.LessOrEqual(t, sum, 382) // 1.5*255
	assert.Equal(t, buf[0], buf[1], "hue kept")

	red := []byte{255, 0, 0}
	Limiter{WhiteCap: 1.5}.Apply(red)
	assert.Equal(t, []byte{255, 0, 0}, red, "single channel is under the cap")
}
