package compare

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// BatchItem is one (componentID, original, generated) triple.
type BatchItem struct {
	ComponentID string
	Original    []byte
	Generated   []byte
}

// ComponentResult pairs a comparison result with its component.
type ComponentResult struct {
	ComponentID string `json:"componentId"`
	Result
}

// CompareBatch compares all items concurrently. The returned slice always
// matches the input order regardless of completion order. Per-item failures
// (undecodable images) are joined into the returned error; successful items
// still carry their results.
func (e *Engine) CompareBatch(ctx context.Context, items []BatchItem) ([]ComponentResult, error) {
	results := make([]ComponentResult, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item BatchItem) {
			defer wg.Done()

			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}

			result, err := e.Compare(item.Original, item.Generated)
			if err != nil {
				errs[i] = fmt.Errorf("component %s: %w", item.ComponentID, err)
				return
			}
			results[i] = ComponentResult{ComponentID: item.ComponentID, Result: result}
		}(i, item)
	}
	wg.Wait()

	for i := range results {
		results[i].ComponentID = items[i].ComponentID
	}

	return results, errors.Join(errs...)
}

// Summary aggregates a batch of comparison results.
type Summary struct {
	Total        int     `json:"total"`
	Passed       int     `json:"passed"`
	Failed       int     `json:"failed"`
	AverageScore float64 `json:"averageScore"`
}

// Summarize reduces a batch to totals. An empty batch yields a zero
// AverageScore, never NaN.
func Summarize(results []ComponentResult) Summary {
	s := Summary{Total: len(results)}
	if len(results) == 0 {
		return s
	}

	sum := 0.0
	for _, r := range results {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
		sum += r.CombinedScore
	}
	s.AverageScore = sum / float64(len(results))
	return s
}
