package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCrossesDecile(t *testing.T) {
	assert.True(t, crossesDecile(noProgress, 0))
	assert.True(t, crossesDecile(noProgress, 5))
	assert.False(t, crossesDecile(0, 9))
	assert.True(t, crossesDecile(9, 10))
	assert.False(t, crossesDecile(42, 47))
	assert.True(t, crossesDecile(95, 100))
}
