package httpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePlatform(t *testing.T) {
	assert.True(t, ValidatePlatform("tiktok").Valid)
	assert.False(t, ValidatePlatform("").Valid)
	assert.False(t, ValidatePlatform("myspace").Valid)
}

func TestValidateFrequencyHours(t *testing.T) {
	assert.True(t, ValidateFrequencyHours(4).Valid)
	assert.True(t, ValidateFrequencyHours(0.5).Valid)
	assert.True(t, ValidateFrequencyHours(24).Valid)
	assert.False(t, ValidateFrequencyHours(0.1).Valid)
	assert.False(t, ValidateFrequencyHours(25).Valid)
}

func TestValidatePagination(t *testing.T) {
	assert.True(t, ValidatePagination("1", "20").Valid)
	assert.True(t, ValidatePagination("", "").Valid)
	assert.False(t, ValidatePagination("0", "20").Valid)
	assert.False(t, ValidatePagination("1", "101").Valid)
}

func TestValidateRunStatus(t *testing.T) {
	assert.True(t, ValidateRunStatus("").Valid)
	assert.True(t, ValidateRunStatus("completed").Valid)
	assert.False(t, ValidateRunStatus("bogus").Valid)
}

func TestSanitizePlatform(t *testing.T) {
	assert.Equal(t, "tiktok", SanitizePlatform("TikTok"))
	assert.Equal(t, "etcpasswd", SanitizePlatform("../../etc/passwd"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello\x00  "))
}
