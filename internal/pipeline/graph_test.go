package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// releaseSpecs mirrors the shape of the tag release graph.
func releaseSpecs() []JobSpec {
	return []JobSpec{
		{Name: "build_packages"},
		{Name: "push_to_pypi", Needs: []string{"build_packages"}},
		{Name: "release", Needs: []string{"build_packages"}, ContinueOnError: true},
		{Name: "push_to_cloudsmith", Needs: []string{"build_packages"}},
		{Name: "push_to_docker_hub"},
		{Name: "push_to_github_packages"},
		{Name: "push_to_tap", Needs: []string{"push_to_pypi"}},
	}
}

func TestNewGraph_TopologicalOrder(t *testing.T) {
	g, err := NewGraph(releaseSpecs())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"build_packages",
		"push_to_cloudsmith",
		"push_to_docker_hub",
		"push_to_github_packages",
		"push_to_pypi",
		"push_to_tap",
		"release",
	}, g.TopologicalOrder())
}

func TestNewGraph_OrderIndependentOfInput(t *testing.T) {
	specs := releaseSpecs()
	reversed := make([]JobSpec, len(specs))
	for i, s := range specs {
		reversed[len(specs)-1-i] = s
	}

	a, err := NewGraph(specs)
	require.NoError(t, err)
	b, err := NewGraph(reversed)
	require.NoError(t, err)
	assert.Equal(t, a.TopologicalOrder(), b.TopologicalOrder())
}

func TestGraph_DepthAndDependents(t *testing.T) {
	g, err := NewGraph(releaseSpecs())
	require.NoError(t, err)

	tests := []struct {
		job   string
		depth int
	}{
		{"build_packages", 0},
		{"push_to_docker_hub", 0},
		{"push_to_pypi", 1},
		{"release", 1},
		{"push_to_tap", 2},
	}
	for _, tt := range tests {
		d, ok := g.Depth(tt.job)
		require.True(t, ok, tt.job)
		assert.Equal(t, tt.depth, d, tt.job)
	}

	assert.Equal(t, []string{"push_to_cloudsmith", "push_to_pypi", "release"}, g.Dependents("build_packages"))
	assert.Empty(t, g.Dependents("push_to_tap"))

	_, ok := g.Depth("nope")
	assert.False(t, ok)
}

func TestGraph_SpecIsCopy(t *testing.T) {
	g, err := NewGraph(releaseSpecs())
	require.NoError(t, err)

	s, ok := g.Spec("push_to_tap")
	require.True(t, ok)
	s.Needs[0] = "mutated"

	again, _ := g.Spec("push_to_tap")
	assert.Equal(t, []string{"push_to_pypi"}, again.Needs)
}

func TestNewGraph_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		specs []JobSpec
		msg   string
	}{
		{"empty", nil, "no jobs"},
		{"empty name", []JobSpec{{Name: ""}}, "name is required"},
		{"duplicate", []JobSpec{{Name: "a"}, {Name: "a"}}, "duplicate job name"},
		{"unknown need", []JobSpec{{Name: "a", Needs: []string{"b"}}}, "unknown job"},
		{"self loop", []JobSpec{{Name: "a", Needs: []string{"a"}}}, "self-loop"},
		{"duplicate need", []JobSpec{{Name: "a"}, {Name: "b", Needs: []string{"a", "a"}}}, "twice"},
		{
			"cycle",
			[]JobSpec{{Name: "a", Needs: []string{"b"}}, {Name: "b", Needs: []string{"a"}}},
			"cycle a -> b -> a",
		},
		{
			"indirect cycle",
			[]JobSpec{
				{Name: "a", Needs: []string{"c"}},
				{Name: "b", Needs: []string{"a"}},
				{Name: "c", Needs: []string{"b"}},
				{Name: "d"},
			},
			"cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.specs)
			require.ErrorIs(t, err, ErrInvalidGraph)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
