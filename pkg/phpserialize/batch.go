package phpserialize

import (
	"sync"

	"github.com/panjf2000/ants/v2"
)

// BatchResult is the outcome of decoding one payload of a batch.
type BatchResult struct {
	Value Value
	Err   error
}

// DecodeBatch decodes many payloads concurrently over a worker pool and
// returns one result per payload, in input order. Each payload gets its
// own deserializer, so failures are independent. workers <= 0 uses one
// worker per payload up to a small cap.
//
// DB exports hand serialized columns over by the million; this is the
// fan-out shape for them.
func DecodeBatch(payloads [][]byte, workers int, opts ...Option) []BatchResult {
	results := make([]BatchResult, len(payloads))
	if len(payloads) == 0 {
		return results
	}
	if workers <= 0 {
		workers = len(payloads)
		if workers > 16 {
			workers = 16
		}
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		// Degenerate pool configuration: decode inline.
		for i, p := range payloads {
			results[i].Value, results[i].Err = Parse(p, opts...)
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range payloads {
		wg.Add(1)
		payload := payloads[i]
		slot := &results[i]
		if err := pool.Submit(func() {
			defer wg.Done()
			slot.Value, slot.Err = Parse(payload, opts...)
		}); err != nil {
			slot.Value, slot.Err = Parse(payload, opts...)
			wg.Done()
		}
	}
	wg.Wait()
	return results
}
