package sync

import "fmt"

// RunStats are the counters for one invocation. Not persisted.
type RunStats struct {
	Processed int
	Uploaded  int
	Skipped   int

	// skip breakdown, informational only
	SkippedInline    int
	SkippedFiltered  int
	SkippedDuplicate int
}

func (s *RunStats) skipInline() {
	s.Skipped++
	s.SkippedInline++
}

func (s *RunStats) skipFiltered() {
	s.Skipped++
	s.SkippedFiltered++
}

func (s *RunStats) skipDuplicate() {
	s.Skipped++
	s.SkippedDuplicate++
}

func (s *RunStats) String() string {
	return fmt.Sprintf("processed=%d uploaded=%d skipped=%d (inline=%d filtered=%d duplicate=%d)",
		s.Processed, s.Uploaded, s.Skipped, s.SkippedInline, s.SkippedFiltered, s.SkippedDuplicate)
}
