package httptransport

import "expvar"

var (
	metricStartRequests = expvar.NewInt("http_negotiation_start_total")
	metricStartErrors   = expvar.NewInt("http_negotiation_start_errors_total")
	metricStepRequests  = expvar.NewInt("http_negotiation_step_total")
	metricRunRequests   = expvar.NewInt("http_negotiation_run_total")

	metricSSEConnectionsTotal  = expvar.NewInt("transcript_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("transcript_sse_connections_active")
)
