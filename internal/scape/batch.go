package scape

import (
	"context"
	"sync"
)

// EvaluateBatch scores candidates concurrently on a fixed worker pool.
// Fitness and constants are written back to each candidate as in Evaluate;
// the returned traces are indexed like cands. Candidates are independent
// and the scape is read-only, so the pool shares one scape safely. A
// structural error or a cancelled context aborts the whole batch.
func (s *OscillatorScape) EvaluateBatch(ctx context.Context, cands []*Candidate, workers int) ([]Trace, error) {
	type job struct {
		idx  int
		cand *Candidate
	}
	type result struct {
		idx   int
		trace Trace
		err   error
	}

	jobs := make(chan job)
	results := make(chan result, len(cands))

	if workers < 1 {
		workers = 1
	}
	if workers > len(cands) {
		workers = len(cands)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				_, trace, err := s.Evaluate(j.cand)
				if err != nil {
					results <- result{idx: j.idx, err: err}
					continue
				}
				results <- result{idx: j.idx, trace: trace}
			}
		}()
	}

	for i := range cands {
		jobs <- job{idx: i, cand: cands[i]}
	}
	close(jobs)

	wg.Wait()
	close(results)

	traces := make([]Trace, len(cands))
	for res := range results {
		if res.err != nil {
			return nil, res.err
		}
		traces[res.idx] = res.trace
	}
	return traces, nil
}
