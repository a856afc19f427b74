// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fulltext

import (
	"sync"

	"github.com/pdiddy/biosearch/pkg/types"
)

// rollingWindow is how many recent attempts the rolling success rate covers.
const rollingWindow = 50

// sourceStats accumulates one source's attempt outcomes. It is shared by
// every concurrent resolution and never influences source order.
type sourceStats struct {
	mu sync.Mutex
	s  types.SourceStats

	recent [rollingWindow]bool
	next   int
	filled int
}

func newSourceStats(name string) *sourceStats {
	return &sourceStats{s: types.SourceStats{Source: name}}
}

func (st *sourceStats) record(outcome types.AttemptOutcome) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.s.Attempts++
	switch outcome {
	case types.OutcomeSuccess:
		st.s.Successes++
	case types.OutcomeNotFound:
		st.s.NotFound++
	case types.OutcomeRateLimited:
		st.s.RateLimited++
	default:
		st.s.Errors++
	}

	st.recent[st.next] = outcome == types.OutcomeSuccess
	st.next = (st.next + 1) % rollingWindow
	if st.filled < rollingWindow {
		st.filled++
	}
}

func (st *sourceStats) limiterWait() {
	st.mu.Lock()
	st.s.LimiterWaits++
	st.mu.Unlock()
}

func (st *sourceStats) snapshot() types.SourceStats {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := st.s
	if out.Attempts > 0 {
		out.SuccessRate = float64(out.Successes) / float64(out.Attempts)
	}
	if st.filled > 0 {
		ok := 0
		for i := 0; i < st.filled; i++ {
			if st.recent[i] {
				ok++
			}
		}
		out.RollingSuccessRate = float64(ok) / float64(st.filled)
	}
	return out
}
