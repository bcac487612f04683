package pipeline

import (
	"log"

	"github.com/grllgrll/gaers.bio/internal/config"
)

// RunBatch processes each configured sample in order, one fully finished
// before the next begins. A failed sample never stops the batch; the returned
// results preserve input order.
func RunBatch(samples []config.Sample, o *Orchestrator) []Result {
	results := make([]Result, 0, len(samples))
	for _, sample := range samples {
		results = append(results, o.Process(sample))
	}
	return results
}

// LogSummary prints the per-sample outcome report.
func LogSummary(results []Result) {
	log.Printf("extraction summary:")
	for _, r := range results {
		if r.Succeeded {
			log.Printf("  %s: SUCCESS (strategy %s)", r.Sample, r.Tier)
			continue
		}
		log.Printf("  %s: FAILED", r.Sample)
		for _, a := range r.Attempts {
			log.Printf("    %s: %s", a.Strategy, a.Reason)
		}
	}
}
