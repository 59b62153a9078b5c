package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCycle(t *testing.T) {
	first, last, err := parseCycle("1-15")
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	assert.Equal(t, 15, last)

	first, last, err = parseCycle("")
	require.NoError(t, err)
	assert.Equal(t, 0, first+last)

	for _, s := range []string{"3", "5-5", "9-2", "0-256", "a-b", "-1-3"} {
		_, _, err := parseCycle(s)
		assert.Error(t, err, s)
	}
}
