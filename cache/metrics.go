package cache

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is the default when no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                   {}
func (NoopMetrics) Miss()                  {}
func (NoopMetrics) Create(bool)            {}
func (NoopMetrics) Discard()               {}
func (NoopMetrics) Resurrect()             {}
func (NoopMetrics) Evict(EvictReason)      {}
func (NoopMetrics) Size(entries, idle int) {}

var _ Metrics = NoopMetrics{}
