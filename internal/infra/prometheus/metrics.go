package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters the registry and redirect path feed. GenerationExhausted and
// suppressed access-record failures are operational anomalies, so they get
// their own series instead of hiding in logs alone.
var (
	URLsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortreg_urls_created_total",
		Help: "Short URLs created.",
	})

	Redirects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortreg_redirects_total",
		Help: "Successful code resolutions on the redirect path.",
	})

	AccessRecordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortreg_access_record_failures_total",
		Help: "Access-count increments that failed and were suppressed.",
	})

	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortreg_code_collisions_total",
		Help: "Generator candidates rejected because the code existed.",
	})

	GenerationExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortreg_code_generation_exhausted_total",
		Help: "Code generation attempts that ran out of retries.",
	})
)
