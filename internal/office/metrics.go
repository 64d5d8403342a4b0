package office

// Metrics is a read-only view of the office loop. It is published from the
// Run goroutine and read from HTTP handlers and tests.
type Metrics struct {
	Surfaces  int    `json:"surfaces"`
	Agents    int    `json:"agents"`
	Presence  string `json:"presence"`
	Furniture int    `json:"furniture"`

	RejectedTotal        uint64 `json:"rejected_total"`
	ExternalChangesTotal uint64 `json:"external_changes_total"`
	DroppedFramesTotal   uint64 `json:"dropped_frames_total"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox    int `json:"inbox"`
	Activity int `json:"activity"`
	Join     int `json:"join"`
	Leave    int `json:"leave"`
}

type counters struct {
	rejected uint64
	external uint64
	dropped  uint64
}

func (o *Office) Metrics() Metrics {
	if o == nil {
		return Metrics{}
	}
	v := o.metrics.Load()
	if v == nil {
		return Metrics{}
	}
	m, ok := v.(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (o *Office) publishMetrics() {
	o.metrics.Store(Metrics{
		Surfaces:             len(o.surfaces),
		Agents:               o.roster.Len(),
		Presence:             string(o.presence.State()),
		Furniture:            len(o.layout.Furniture),
		RejectedTotal:        o.stats.rejected,
		ExternalChangesTotal: o.stats.external,
		DroppedFramesTotal:   o.stats.dropped,
		QueueDepths: QueueDepths{
			Inbox:    len(o.inbox),
			Activity: len(o.activity),
			Join:     len(o.join),
			Leave:    len(o.leave),
		},
	})
}
