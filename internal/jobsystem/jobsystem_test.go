package jobsystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestResultOrdering_StableSortByPassThenOrdering covers property P6 and
// the ordering guarantee of spec §5(i)/(ii): results are concatenated in
// (pass, cascade, ordering) order regardless of completion order.
func TestResultOrdering_StableSortByPassThenOrdering(t *testing.T) {
	s := &System{}
	s.results = []Result{
		{Pass: PassColorDepth, Ordering: 2},
		{Pass: PassShadow, Cascade: 1, Ordering: 0},
		{Pass: PassGUI, Ordering: 0},
		{Pass: PassShadow, Cascade: 0, Ordering: 5},
		{Pass: PassColorDepth, Ordering: 0},
		{Pass: PassSkybox, Ordering: 0},
	}

	sorted := sortResults(s.results)

	var passes []Pass
	for _, r := range sorted {
		passes = append(passes, r.Pass)
	}
	assert.Equal(t, []Pass{PassShadow, PassShadow, PassSkybox, PassColorDepth, PassColorDepth, PassGUI}, passes)

	// Within PassShadow, cascade 0 must precede cascade 1.
	assert.Equal(t, 0, sorted[0].Cascade)
	assert.Equal(t, 1, sorted[1].Cascade)

	// Within PassColorDepth, ordering 0 precedes ordering 2.
	assert.Equal(t, 0, sorted[3].Ordering)
	assert.Equal(t, 2, sorted[4].Ordering)
}

func sortResults(results []Result) []Result {
	s := &System{results: results}
	return s.WaitForFinish()
}
