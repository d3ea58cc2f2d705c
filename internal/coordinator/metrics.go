package coordinator

import "expvar"

var (
	metricSessionsStarted  = expvar.NewInt("negotiation_sessions_started_total")
	metricSessionsRejected = expvar.NewInt("negotiation_sessions_rejected_total")
	metricSessionsActive   = expvar.NewInt("negotiation_sessions_active")
	metricSessionsEvicted  = expvar.NewInt("negotiation_sessions_evicted_total")

	metricStepsTotal  = expvar.NewInt("negotiation_steps_total")
	metricStepErrors  = expvar.NewInt("negotiation_step_errors_total")
	metricDealsTotal  = expvar.NewInt("negotiation_deals_total")
	metricNoDealTotal = expvar.NewInt("negotiation_no_deals_total")

	metricSinkErrors = expvar.NewInt("negotiation_sink_errors_total")
)
