package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evanhartley/genforge/internal/domain/model"
)

func finishedJob(state model.JobState) model.GenerationJob {
	created := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	return model.GenerationJob{
		ID:         "job-1",
		Type:       model.GenerationCreate,
		State:      state,
		Attempts:   2,
		Polls:      7,
		CreatedAt:  created,
		FinishedAt: created.Add(42 * time.Second),
	}
}

func TestJobFinished_CountsByState(t *testing.T) {
	c := NewCollector("test")

	c.JobFinished(finishedJob(model.JobStateSucceeded))
	c.JobFinished(finishedJob(model.JobStateSucceeded))
	c.JobFinished(finishedJob(model.JobStateFailed))

	assert.Equal(t, float64(2), testutil.ToFloat64(c.jobsTotal.WithLabelValues("succeeded", "CREATE")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.jobsTotal.WithLabelValues("failed", "CREATE")))
}

func TestSetBreakerState(t *testing.T) {
	c := NewCollector("test")

	c.SetBreakerState("closed")
	assert.Equal(t, float64(0), testutil.ToFloat64(c.breakerState))

	c.SetBreakerState("half-open")
	assert.Equal(t, float64(1), testutil.ToFloat64(c.breakerState))

	c.SetBreakerState("open")
	assert.Equal(t, float64(2), testutil.ToFloat64(c.breakerState))

	c.SetBreakerState("gibberish")
	assert.Equal(t, float64(2), testutil.ToFloat64(c.breakerState))
}

func TestSetUsage(t *testing.T) {
	c := NewCollector("test")

	c.SetUsage(model.UsageSnapshot{Count: 123, Limit: 600})

	assert.Equal(t, float64(123), testutil.ToFloat64(c.usageCount))
	assert.Equal(t, float64(600), testutil.ToFloat64(c.usageLimit))
}

func TestCollector_RegistryGathers(t *testing.T) {
	c := NewCollector("test")
	c.JobFinished(finishedJob(model.JobStateSucceeded))

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
