package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocationFallsBackToUTCForUnknownZone(t *testing.T) {
	c := &Config{LocalTimezone: "Not/AZone"}
	assert.Equal(t, time.UTC, c.Location())
}

func TestLocationResolvesKnownZone(t *testing.T) {
	c := &Config{LocalTimezone: "Asia/Ho_Chi_Minh"}
	loc := c.Location()
	assert.Equal(t, "Asia/Ho_Chi_Minh", loc.String())
}

func TestGetEnvAsFloatDefaultsOnMissing(t *testing.T) {
	assert.Equal(t, 1.5, getEnvAsFloat("MEETING_TEST_UNSET_FLOAT", 1.5))
}

func TestGetEnvAsDurationDefaultsOnInvalid(t *testing.T) {
	t.Setenv("MEETING_TEST_DURATION", "not-a-duration")
	assert.Equal(t, 5*time.Minute, getEnvAsDuration("MEETING_TEST_DURATION", 5*time.Minute))
}
