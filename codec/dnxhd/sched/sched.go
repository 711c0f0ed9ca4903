/*
DESCRIPTION
  sched.go is the scheduler adapter the frame orchestrator dispatches
  per-macroblock-row work through: a parallel_for primitive that hands
  each row index, and a thread index in [0,n), to a job function,
  running jobs across a bounded goroutine pool.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package sched provides the row-parallel work dispatcher the frame
// orchestrator drives encode and decode slice jobs through.
package sched

import "sync"

// Job is one unit of row work: row is the macroblock row index, thread
// is this job's slot in [0, n) among concurrently running jobs.
type Job func(row, thread int)

// Pool runs Job functions over row indices using a bounded number of
// worker goroutines, mirroring the host runtime's parallel_for
// contract: callers that already have a concurrency runtime can swap
// this for their own by implementing the same ParallelFor method.
type Pool struct {
	N int // worker count; <=0 is treated as 1, as in NewPool
}

// NewPool returns a Pool that runs up to n jobs concurrently. n<=0 is
// treated as 1 (sequential execution), keeping behaviour deterministic
// by default.
func NewPool(n int) *Pool {
	if n <= 0 {
		n = 1
	}
	return &Pool{N: n}
}

// ParallelFor runs job(row, thread) for row in [0, rows), distributing
// rows across p.N worker goroutines, and blocks until every row has
// completed.
func (p *Pool) ParallelFor(rows int, job Job) {
	if rows <= 0 {
		return
	}
	workers := p.N
	if workers < 1 {
		workers = 1
	}
	if workers > rows {
		workers = rows
	}

	var wg sync.WaitGroup
	rowCh := make(chan int, rows)
	for r := 0; r < rows; r++ {
		rowCh <- r
	}
	close(rowCh)

	wg.Add(workers)
	for t := 0; t < workers; t++ {
		t := t
		go func() {
			defer wg.Done()
			for row := range rowCh {
				job(row, t)
			}
		}()
	}
	wg.Wait()
}
