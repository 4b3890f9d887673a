package scraper

import (
	"context"
	"sync"

	"github.com/use-agent/auspex/simhash"
)

// BatchResult pairs one URL's outcome with its fingerprint-based
// near-duplicate flag, or its isolated error.
type BatchResult struct {
	URL       string
	Outcome   *Outcome
	Err       error
	Fingerprint uint64
	DuplicateOf string // URL of an earlier result this one is near-duplicate of, if any
}

const defaultBatchConcurrency = 3
const simhashDuplicateThreshold = 3

// ScrapeMany fetches urls with bounded concurrency (default 3), waiting for
// each batch to finish before starting the next. A failure on one URL never
// aborts the batch. Results are flagged as near-duplicates of an earlier
// result in the same batch via SimHash on the extracted markdown.
func (c *Cascade) ScrapeMany(ctx context.Context, urls []string, req Request, concurrency int) []BatchResult {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	results := make([]BatchResult, len(urls))
	seen := make([]struct {
		url         string
		fingerprint uint64
	}, 0, len(urls))
	var seenMu sync.Mutex

	for start := 0; start < len(urls); start += concurrency {
		end := start + concurrency
		if end > len(urls) {
			end = len(urls)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u := urls[i]
				perURLReq := req
				perURLReq.URL = u
				outcome, err := c.Fetch(ctx, perURLReq)
				if err != nil {
					results[i] = BatchResult{URL: u, Err: err}
					return
				}

				fp := simhash.Fingerprint(outcome.Extract.Content)
				br := BatchResult{URL: u, Outcome: outcome, Fingerprint: fp}

				seenMu.Lock()
				for _, s := range seen {
					if simhash.Similar(fp, s.fingerprint, simhashDuplicateThreshold) {
						br.DuplicateOf = s.url
						break
					}
				}
				seen = append(seen, struct {
					url         string
					fingerprint uint64
				}{url: u, fingerprint: fp})
				seenMu.Unlock()

				results[i] = br
			}(i)
		}
		wg.Wait()

		if ctx.Err() != nil {
			break
		}
	}

	return results
}
