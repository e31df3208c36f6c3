package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQueue_FixedOrder(t *testing.T) {
	// Two tasks and one project expand in taxonomy order, not request order
	c := &Classification{Counts: map[string]int{
		"add_task":    2,
		"add_project": 1,
	}}

	assert.Equal(t, []string{"project_maker", "task_maker", "task_maker"}, buildQueue(c))
}

func TestBuildQueue_Empty(t *testing.T) {
	c := &Classification{Counts: map[string]int{}}
	assert.Empty(t, buildQueue(c))
}

func TestBuildQueue_AllKinds(t *testing.T) {
	counts := map[string]int{}
	for _, intent := range Taxonomy {
		counts[intent.Name] = 1
	}

	queue := buildQueue(&Classification{Counts: counts})
	assert.Equal(t, []string{
		"project_maker",
		"req_maker",
		"task_maker",
		"dep_maker",
		"resource_maker",
		"resource_assigner",
		"analyst",
	}, queue)
}

func TestIntArg(t *testing.T) {
	args := map[string]any{
		"float":    float64(2),
		"int":      3,
		"int64":    int64(4),
		"negative": float64(-1),
		"text":     "5",
	}

	assert.Equal(t, 2, intArg(args, "float"))
	assert.Equal(t, 3, intArg(args, "int"))
	assert.Equal(t, 4, intArg(args, "int64"))
	assert.Equal(t, 0, intArg(args, "negative"))
	assert.Equal(t, 0, intArg(args, "text"))
	assert.Equal(t, 0, intArg(args, "missing"))
}
