package metrics

// Instrument names the Dispatcher records against a configured Provider.
// Centralizing the names here keeps dispatcher.go and any custom Provider
// implementation working off the same vocabulary.
const (
	InstrumentImmediateQueueDepth = "dispatcher.immediate_queue.depth"
	InstrumentSeriesQueueDepth    = "dispatcher.series_queue.depth"
	InstrumentDemandQueueDepth    = "dispatcher.demand_queue.depth"
	InstrumentWorkersActive       = "dispatcher.workers.active"
	InstrumentActionsDispatched   = "dispatcher.actions.dispatched"
	InstrumentActionsCompleted    = "dispatcher.actions.completed"
	InstrumentActionsFailed       = "dispatcher.actions.failed"
	InstrumentActionDuration      = "dispatcher.action.duration_seconds"
)
