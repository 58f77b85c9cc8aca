package metrics

import "time"

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// Mint records the final status of a mint pipeline run.
func Mint(finalStatus string) {
	if !enabled {
		return
	}
	mintTotal.WithLabelValues(finalStatus).Inc()
}

// MintStage records how long one pipeline stage took.
func MintStage(stage string, d time.Duration) {
	if !enabled {
		return
	}
	mintStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordPin records a pinning request of the given kind ("file" or "json").
func RecordPin(kind string, err error) {
	if !enabled {
		return
	}
	pinTotal.WithLabelValues(kind, status(err)).Inc()
}

// ImageGenerate records an image generation request.
func ImageGenerate(err error) {
	if !enabled {
		return
	}
	imageGenerateTotal.WithLabelValues(status(err)).Inc()
}

// RecordChainTx records a transaction submission.
func RecordChainTx(method string, err error) {
	if !enabled {
		return
	}
	chainTxTotal.WithLabelValues(method, status(err)).Inc()
}

// CollectionResolve records where a cold collection lookup was satisfied
// ("store", "config" or "deployed").
func CollectionResolve(source string) {
	if !enabled {
		return
	}
	collectionResolveTotal.WithLabelValues(source).Inc()
}

// Verification records a verification outcome ("mint" or "collection").
func Verification(kind, result string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(kind, result).Inc()
}

// RateLimited records a request rejected by the named limiter.
func RateLimited(limiter string) {
	if !enabled {
		return
	}
	rateLimitedTotal.WithLabelValues(limiter).Inc()
}
