package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlotID(t *testing.T) {
	cases := []struct {
		in      string
		section string
		level   int
		number  string
	}{
		{"RB-L3-K1", "RB", 3, "K1"},
		{"lb-2-a", "lb", 2, "a"},
		{"A-1-B-2", "A", 1, "B-2"},
		{"RB", "RB", 1, "Unknown"},
		{"RB-x", "RB", 1, "Unknown"},
		{"-L0-", "Unknown", 1, "Unknown"},
	}
	for _, tc := range cases {
		section, level, number := ParsePlotID(tc.in)
		assert.Equal(t, tc.section, section, tc.in)
		assert.Equal(t, tc.level, level, tc.in)
		assert.Equal(t, tc.number, number, tc.in)
	}
}

func TestDestinationFromLocation(t *testing.T) {
	assert.Equal(t, "lb-2-a", destinationFromLocation("lb-2-a - Left Block Row 2"))
	assert.Equal(t, "lb-2-a", destinationFromLocation(" LB-2-A "))
	assert.Equal(t, "", destinationFromLocation("Municipal cemetery, north gate"))
	assert.Equal(t, "", destinationFromLocation(""))
}
