package concurrent

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPool(t *testing.T) {
	testCases := []struct {
		name       string
		numWorkers int
		jobs       int
	}{
		{name: "single worker", numWorkers: 1, jobs: 10},
		{name: "more workers than jobs", numWorkers: 8, jobs: 3},
		{name: "one worker per cpu", numWorkers: 0, jobs: 100},
		{name: "no jobs", numWorkers: 2, jobs: 0},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			wp := NewWorkerPool[int, int](tt.numWorkers, tt.jobs)
			assert.Greater(t, wp.NumWorkers(), 0)
			for i := 0; i < tt.jobs; i++ {
				wp.AddJob(i)
			}
			wp.Close()
			wp.Start(func(job int) int { return job * job })
			wp.Wait()

			got := make([]int, 0, tt.jobs)
			for r := range wp.CollectResults() {
				got = append(got, r)
			}
			sort.Ints(got)

			want := make([]int, tt.jobs)
			for i := range want {
				want[i] = i * i
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestWorkerPoolCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wp := NewWorkerPool[int, int](2, 5).WithContext(ctx)
	for i := 0; i < 5; i++ {
		wp.AddJob(i)
	}
	wp.Close()
	wp.Start(func(job int) int { return job })
	wp.Wait()

	n := 0
	for range wp.CollectResults() {
		n++
	}
	assert.Zero(t, n)
}
