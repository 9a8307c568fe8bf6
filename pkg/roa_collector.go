package pkg

// RoaCollector accumulates announced route origins from an RTR session. It
// owns its RoaSet for the duration of the run; callers take the set only
// after the session has concluded.
type RoaCollector struct {
	roas      RoaSet
	exchanges int
}

func NewRoaCollector() *RoaCollector {
	return &RoaCollector{}
}

// Start opens an empty batch for the next data exchange.
func (c *RoaCollector) Start(reset bool) *UpdateBatch {
	return &UpdateBatch{Reset: reset}
}

// Apply folds one completed exchange into the set. Announcements are
// appended; withdrawals are ignored, since a fresh full download has nothing
// to withdraw against. Completion is read from the End of Data timing record:
// once the cache has reported a usable refresh interval and at least one ROA
// has arrived, the initial synchronization is done and Apply asks the
// session loop to stop.
func (c *RoaCollector) Apply(batch *UpdateBatch, timing Timing) (bool, error) {
	c.exchanges++

	for _, u := range batch.Updates {
		if u.Action != ActionAnnounce {
			continue
		}
		c.roas.Add(u.Origin)
	}

	return timing.Refresh > 0 && c.roas.Len() > 0, nil
}

// Set returns the accumulated route origins.
func (c *RoaCollector) Set() *RoaSet {
	return &c.roas
}

// Exchanges returns the number of completed data exchanges.
func (c *RoaCollector) Exchanges() int {
	return c.exchanges
}
