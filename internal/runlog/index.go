package runlog

// CompletedIndex tracks which (trial, sample) pairs already have a
// recorded outcome. It is rebuilt from the logs, which stay the single
// source of truth.
type CompletedIndex struct {
	pairs map[string]map[string]struct{}
}

// NewCompletedIndex returns an empty index.
func NewCompletedIndex() *CompletedIndex {
	return &CompletedIndex{pairs: make(map[string]map[string]struct{})}
}

// Add marks a pair as completed.
func (i *CompletedIndex) Add(trialID, sampleID string) {
	m, ok := i.pairs[trialID]
	if !ok {
		m = make(map[string]struct{})
		i.pairs[trialID] = m
	}
	m[sampleID] = struct{}{}
}

// Done reports whether a pair has a recorded outcome.
func (i *CompletedIndex) Done(trialID, sampleID string) bool {
	_, ok := i.pairs[trialID][sampleID]
	return ok
}

// Count returns the number of completed samples for a trial.
func (i *CompletedIndex) Count(trialID string) int {
	return len(i.pairs[trialID])
}

// Trials lists trial IDs with at least one completed sample.
func (i *CompletedIndex) Trials() []string {
	out := make([]string, 0, len(i.pairs))
	for t := range i.pairs {
		out = append(out, t)
	}
	return out
}

// Pairs invokes fn for every completed (trial, sample) pair.
func (i *CompletedIndex) Pairs(fn func(trialID, sampleID string)) {
	for t, samples := range i.pairs {
		for s := range samples {
			fn(t, s)
		}
	}
}

// BuildIndex scans every run log under dir into a CompletedIndex.
func BuildIndex(dir string) (*CompletedIndex, error) {
	byTrial, err := ReadDir(dir)
	if err != nil {
		return nil, err
	}
	idx := NewCompletedIndex()
	for trialID, records := range byTrial {
		for _, rec := range records {
			idx.Add(trialID, rec.SampleID)
		}
	}
	return idx, nil
}
