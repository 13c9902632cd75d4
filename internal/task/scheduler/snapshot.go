package scheduler

import "time"

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	c, loc := s.c, s.loc
	items := make([]ScheduleInfo, 0, len(s.defs))
	for _, d := range s.defs {
		it := ScheduleInfo{Name: d.name, Spec: d.spec, Timeout: d.timeout}
		if c != nil && d.entryID != 0 {
			e := c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		items = append(items, it)
	}
	s.mu.Unlock()

	if loc == nil {
		loc = time.Local
	}
	s.tmu.Lock()
	pending := len(s.once)
	s.tmu.Unlock()

	return Snapshot{Running: c != nil, Timezone: loc.String(), Schedules: items, Pending: pending}
}
