package port

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeclare(t *testing.T) {
	s := Declare(RGB24)
	assert.Equal(t, RGB24, s.Format())
	assert.True(t, s.Available())

	s.SetAvailable(false)
	assert.False(t, s.Available())
}

func TestSpecs(t *testing.T) {
	specs := DeclareAll([]Format{RGB24, Gray8, YUYV})

	assert.Equal(t, []Format{RGB24, Gray8, YUYV}, specs.Formats())
	assert.Equal(t, 1, specs.IndexOf(Gray8))
	assert.Equal(t, -1, specs.IndexOf(Bayer8))
	assert.True(t, specs.Intersects([]Format{Bayer8, YUYV}))
	assert.False(t, specs.Intersects([]Format{Bayer8}))

	specs[1].SetAvailable(false)
	assert.Equal(t, []Format{RGB24, YUYV}, specs.AvailableFormats())
	assert.Equal(t, "rgb24,gray8*,yuyv", specs.String())

	specs.SetAll(true)
	assert.Len(t, specs.AvailableFormats(), 3)
}

func TestIntersect(t *testing.T) {
	testCases := []struct {
		name string
		a, b []Format
		want []Format
	}{
		{name: "disjoint", a: []Format{RGB24}, b: []Format{Gray8}, want: nil},
		{name: "keeps order of a", a: []Format{YUYV, Gray8, RGB24}, b: []Format{RGB24, YUYV}, want: []Format{YUYV, RGB24}},
		{name: "drops duplicates", a: []Format{Gray8, Gray8}, b: []Format{Gray8}, want: []Format{Gray8}},
		{name: "empty", a: nil, b: []Format{Gray8}, want: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Intersect(tc.a, tc.b))
		})
	}
}

func TestRelations(t *testing.T) {
	outputs := DeclareAll([]Format{RGB24, Gray8})

	t.Run("unconstrained table allows every output", func(t *testing.T) {
		var r Relations
		assert.False(t, r.Constrained())
		assert.Equal(t, []Format{RGB24, Gray8}, r.OutputsFor(YUYV, outputs.Formats()))
		assert.Equal(t, []int{0, 1}, r.Candidates(YUYV, outputs))
	})

	t.Run("constrained table", func(t *testing.T) {
		r := Relations{
			{Input: YUYV, Output: RGB24},
			{Input: YUYV, Output: Gray8},
			{Input: RGB24, Output: Gray8},
		}
		assert.Equal(t, []Format{RGB24, Gray8}, r.OutputsFor(YUYV, outputs.Formats()))
		assert.Equal(t, []int{1}, r.Candidates(RGB24, outputs))
		assert.Empty(t, r.Candidates(Bayer8, outputs))
	})
}
