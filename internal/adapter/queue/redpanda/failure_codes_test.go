package redpanda_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trendloom/harvester/internal/adapter/queue/redpanda"
	"github.com/trendloom/harvester/internal/domain"
)

func TestClassifyTransportError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, domain.KindUnknown},
		{"deadline", context.DeadlineExceeded, domain.KindTimeout},
		{"upstream timeout sentinel", domain.ErrUpstreamTimeout, domain.KindTimeout},
		{"proxy sentinel", domain.ErrProxy, domain.KindProxy},
		{"rate limited sentinel", domain.ErrRateLimited, domain.KindRateLimit},
		{"unclassified", fmt.Errorf("boom"), domain.KindUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, redpanda.ClassifyTransportError(c.err))
		})
	}
}
