package engine

import (
	"fmt"
	"math/rand"

	"bgzfiltra/internal/bugzilla"
)

type GeneratorConfig struct {
	Scenario string // "calm" or "escalated"
	Count    int
	Seed     int64
}

var (
	statuses   = []string{"NEW", "CONFIRMED", "IN_PROGRESS", "REOPENED", "RESOLVED", "VERIFIED"}
	components = []string{"Kernel", "Installation", "Salt", "Documentation", "Other"}
	priorities = []string{"P1 - Urgent", "P2 - High", "P3 - Medium", "P4 - Low", "P5 - None"}
	assignees  = []string{"alice@example.com", "bob@example.com", "carol@example.com", "screening-team@example.com", ""}
)

// Generate produces synthetic records shaped like a Bugzilla product query.
func Generate(cfg GeneratorConfig) ([]bugzilla.Record, error) {
	// l3Share is the probability that a record carries an L3 marker;
	// resolvedShare how often a record is RESOLVED.
	var l3Share, resolvedShare float64
	switch cfg.Scenario {
	case "", "calm":
		l3Share, resolvedShare = 0.05, 0.6
	case "escalated":
		l3Share, resolvedShare = 0.35, 0.3
	default:
		return nil, fmt.Errorf("unknown scenario %q", cfg.Scenario)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	records := make([]bugzilla.Record, 0, cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		r := bugzilla.Record{
			ID:        100000 + i,
			Summary:   fmt.Sprintf("Mock bug %d", i+1),
			Assignee:  pick(rng, assignees),
			Component: pick(rng, components),
			Priority:  pick(rng, priorities),
			Flags:     []bugzilla.Flag{},
		}

		if rng.Float64() < resolvedShare {
			r.Status = "RESOLVED"
		} else {
			r.Status = pick(rng, statuses)
		}

		if rng.Float64() < l3Share {
			r.Whiteboard = l3Whiteboard(rng, r.Status == "RESOLVED")
		} else if rng.Float64() < 0.3 {
			r.Whiteboard = "reproducer:c0"
		}

		if rng.Float64() < 0.15 {
			name := "needinfo"
			r.Flags = append(r.Flags, bugzilla.Flag{Name: &name, Status: "?", Requestee: r.Assignee})
		}

		records = append(records, r)
	}

	return records, nil
}

// l3Whiteboard builds one or more L3 markers; resolved bugs carry wasL3.
func l3Whiteboard(rng *rand.Rand, resolved bool) string {
	marker := "openL3:"
	if resolved {
		marker = "wasL3:"
	}
	wb := fmt.Sprintf("%s%d", marker, 50000+rng.Intn(50000))
	// Roughly one in five escalations has a second customer case.
	if rng.Float64() < 0.2 {
		wb += fmt.Sprintf(" %s%d", marker, 50000+rng.Intn(50000))
	}
	return wb
}

func pick(rng *rand.Rand, values []string) string {
	return values[rng.Intn(len(values))]
}
