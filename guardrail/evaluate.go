package guardrail

import (
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentrail/core"
)

// EvaluateAll runs guardrails concurrently against text, at most maxFanOut at a
// time (all at once when maxFanOut <= 0). Results keep the order of
// guardrails. The first evaluation failure cancels the others and is returned.
//
// When rc is cancelled EvaluateAll returns rc.Err() immediately; in-flight
// evaluators are abandoned, not awaited.
func EvaluateAll(
	rc *core.RunContext,
	guardrails []*Guardrail,
	agent core.AgentInfo,
	text string,
	maxFanOut int,
) ([]core.GuardrailResult, error) {
	if len(guardrails) == 0 {
		return nil, nil
	}
	if err := rc.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	eg, egCtx := errgroup.WithContext(rc.Context)
	if maxFanOut > 0 {
		eg.SetLimit(maxFanOut)
	}
	evalCtx := rc.WithContext(egCtx)

	results := make([]core.GuardrailResult, len(guardrails))
	done := make(chan error, 1)

	go func() {
		for i, g := range guardrails {
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				res, err := g.Evaluate(evalCtx, agent, text)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		done <- eg.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-rc.Done():
		return nil, rc.Err()
	}

	rc.LogDebug(
		"guardrail.batch.complete",
		"agent", agent.Name,
		"count", len(guardrails),
		"fan_out", maxFanOut,
		"tripped", len(Tripped(results)),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return results, nil
}

// Tripped returns the results whose tripwire triggered, in order.
func Tripped(results []core.GuardrailResult) []core.GuardrailResult {
	var out []core.GuardrailResult
	for _, r := range results {
		if r.TripwireTriggered {
			out = append(out, r)
		}
	}
	return out
}
