package redpanda

import (
	"context"
	"errors"

	"github.com/trendloom/harvester/internal/domain"
)

// ClassifyTransportError maps an error raised while handling a dispatched
// harvest task to the error taxonomy (C3), so the retry manager can apply
// kind-appropriate backoff and the permanent-failure log carries a reason.
func ClassifyTransportError(err error) domain.ErrorKind {
	if err == nil {
		return domain.KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrUpstreamTimeout) {
		return domain.KindTimeout
	}
	return domain.KindOf(err)
}
