package getter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeMinutes(t *testing.T) {
	assert.Equal(t, float64(142), runtimeMinutes("2:22:15"))
	assert.Equal(t, float64(61), runtimeMinutes("1:01:59"))
	assert.Equal(t, float64(45), runtimeMinutes("45:00"))
	assert.Nil(t, runtimeMinutes(""))
	assert.Nil(t, runtimeMinutes("90"))
	assert.Nil(t, runtimeMinutes("xx:yy:zz"))
}

func TestParseID(t *testing.T) {
	assert.Equal(t, 603, parseID("603"))
	assert.Equal(t, 0, parseID(""))
	assert.Equal(t, 0, parseID("tt0133093"))
}
