package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstant_Delay(t *testing.T) {
	c := NewConstant(2 * time.Second)
	assert.Equal(t, 2*time.Second, c.Delay(1))
	assert.Equal(t, 2*time.Second, c.Delay(10))
}

func TestExponential_Delay(t *testing.T) {
	e := NewExponential(time.Second, time.Minute)
	assert.Equal(t, time.Second, e.Delay(1))
	assert.Equal(t, 2*time.Second, e.Delay(2))
	assert.Equal(t, 4*time.Second, e.Delay(3))
	assert.Equal(t, time.Minute, e.Delay(20), "capped at max")
}

func TestExponential_NoCapWhenMaxZero(t *testing.T) {
	e := NewExponential(time.Second, 0)
	assert.Equal(t, 8*time.Second, e.Delay(4))
}

func TestExponentialWithJitter_Delay(t *testing.T) {
	e := NewExponentialWithJitter(time.Second, 10*time.Second)
	for attempt := 1; attempt <= 6; attempt++ {
		for range 50 {
			d := e.Delay(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, 10*time.Second)
		}
	}
}

func TestDefaultStrategy(t *testing.T) {
	s := DefaultStrategy()
	d := s.Delay(3)
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, 30*time.Second)
}
