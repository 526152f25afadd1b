package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	scraperRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Scraper calls by outcome (ok/no_response/http_status/request_setup/timeout).",
		},
		[]string{"outcome"},
	)

	discoveryStage2Total = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_stage2_total",
			Help: "Discovery runs that fell back to the permissive second stage.",
		},
		[]string{"platform"},
	)

	profilesFilteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profiles_filtered_total",
			Help: "Profiles excluded from results, by reason (private/relevance).",
		},
		[]string{"reason"},
	)
)

func init() {
	register(scraperRequestsTotal, discoveryStage2Total, profilesFilteredTotal)
}

func IncScraper(outcome string) {
	scraperRequestsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncStage2(platform string) {
	discoveryStage2Total.WithLabelValues(norm(platform)).Inc()
}

func IncProfileFiltered(reason string) {
	profilesFilteredTotal.WithLabelValues(norm(reason)).Inc()
}
