package features

import (
	"sync"

	"github.com/manchuphon/Alert-Dashboard/internal/domain"
)

// WorkerPool builds project partitions in parallel.
// A project's periods are always handled by a single worker, in period order.
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// projectBatch is the set of valid records of one project
type projectBatch struct {
	projectID string
	records   []domain.ProjectPeriodRecord
}

type jobItem struct {
	index int
	batch projectBatch
}

type resultItem struct {
	index int
	rows  []Row
}

// BuildBatch runs build over every batch and returns the rows in batch order
func (wp *WorkerPool) BuildBatch(batches []projectBatch, build func(projectBatch) []Row) [][]Row {
	numBatches := len(batches)
	if numBatches == 0 {
		return [][]Row{}
	}

	jobs := make(chan jobItem, numBatches)
	results := make(chan resultItem, numBatches)

	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numBatches < numActualWorkers {
		numActualWorkers = numBatches
	}

	for i := 0; i < numActualWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- resultItem{index: job.index, rows: build(job.batch)}
			}
		}()
	}

	for idx, batch := range batches {
		jobs <- jobItem{index: idx, batch: batch}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([][]Row, numBatches)
	for result := range results {
		out[result.index] = result.rows
	}
	return out
}
