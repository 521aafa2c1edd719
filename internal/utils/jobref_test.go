package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeJobRef(t *testing.T) {
	cases := map[string]string{
		"73":     "73",
		"73.0":   "73",
		"job_18": "18",
		"job-7":  "7",
		"abc":    "abc",
		"":       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeJobRef(in), "input %q", in)
	}
}

func TestJobRefInt(t *testing.T) {
	n, ok := JobRefInt("73.0")
	assert.True(t, ok)
	assert.Equal(t, int64(73), n)

	_, ok = JobRefInt("abc")
	assert.False(t, ok)
}
