package observable

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoopRunsInOrder(t *testing.T) {
	loop := NewLoop()
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}
	loop.Close()

	want := make([]int, 100)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestLoopSurvivesPanics(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()

	var ran atomic.Bool
	loop.Post(func() { panic("subscriber bug") })
	loop.Post(func() { ran.Store(true) })
	loop.Flush()

	assert.True(t, ran.Load())
}

func TestLoopClosed(t *testing.T) {
	loop := NewLoop()
	loop.Close()

	var ran atomic.Bool
	loop.Post(func() { ran.Store(true) })
	loop.Flush()

	assert.False(t, ran.Load())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "replace", ActionReplace.String())
	assert.Equal(t, "unknown", Action(0).String())
}
