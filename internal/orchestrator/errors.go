package orchestrator

import (
	"context"
	"errors"

	"candleflow/internal/router"
	"candleflow/internal/standardize"
	"candleflow/internal/store"
)

// Error kinds used in per-symbol reports. Only transient failures are
// eligible for retry; provision failures abort the whole task.
const (
	KindTransient  = "transient"
	KindValidation = "validation"
	KindRouting    = "routing"
	KindProvision  = "provision"
	KindCanceled   = "canceled"
)

func classify(err error) string {
	var verr *standardize.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, store.ErrProvision):
		return KindProvision
	case errors.Is(err, router.ErrNoProviderAvailable):
		return KindRouting
	case errors.As(err, &verr):
		return KindValidation
	default:
		// timeouts, rate limits and transport errors land here
		return KindTransient
	}
}

func retryable(err error) bool {
	return classify(err) == KindTransient
}
