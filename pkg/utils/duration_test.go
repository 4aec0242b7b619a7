package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{1, "1s"},
		{59, "59s"},
		{60, "1m"},
		{61, "1m"},
		{119, "1m"},
		{3599, "59m"},
		{3600, "1h"},
		{3660, "1h 1m"},
		{7200, "2h"},
		{9000, "2h 30m"},
		{90000, "25h"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.seconds), "FormatDuration(%d)", tt.seconds)
	}
}
