package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/domain"
)

func TestPlatform_Valid(t *testing.T) {
	assert.True(t, domain.PlatformTikTok.Valid())
	assert.True(t, domain.PlatformX.Valid())
	assert.False(t, domain.Platform("snapchat").Valid())
}

func TestValidateMetric_Caps(t *testing.T) {
	cases := []struct {
		name    string
		metric  domain.Metric
		wantErr bool
	}{
		{"ok likes", domain.Metric{Type: domain.MetricLikes, Value: 1000}, false},
		{"negative", domain.Metric{Type: domain.MetricLikes, Value: -1}, true},
		{"over cap likes", domain.Metric{Type: domain.MetricLikes, Value: 2_000_000_000}, true},
		{"over cap comments", domain.Metric{Type: domain.MetricComments, Value: 200_000_000}, true},
		{"over cap views", domain.Metric{Type: domain.MetricViews, Value: 20_000_000_000}, true},
		{"uncapped type", domain.Metric{Type: domain.MetricFollowers, Value: 999_999_999_999}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := domain.ValidateMetric(tc.metric)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrInvalidArgument)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSchedulerSetting_ComputeNextRunAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := domain.SchedulerSetting{FrequencyHours: 2.5}
	next := s.ComputeNextRunAt(now)
	assert.Equal(t, now.Add(150*time.Minute), next)

	last := now.Add(-time.Hour)
	s.LastRunAt = &last
	next = s.ComputeNextRunAt(now)
	assert.Equal(t, last.Add(150*time.Minute), next)
}
