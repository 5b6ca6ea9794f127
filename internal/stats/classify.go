package stats

import (
	"strings"

	"bgzfiltra/internal/bugzilla"
)

// Whiteboard tokens marking a current or past L3 escalation.
const (
	OpenL3Marker = "openL3:"
	WasL3Marker  = "wasL3:"
)

// StatusResolved is the only status excluded from the open-assignee view.
const StatusResolved = "RESOLVED"

// GroupByAssignee partitions records by assignee, keeping input order.
func GroupByAssignee(records []bugzilla.Record) map[string][]bugzilla.Record {
	return groupBy(records, func(r bugzilla.Record) string { return r.Assignee })
}

// GroupByComponent partitions records by component, keeping input order.
func GroupByComponent(records []bugzilla.Record) map[string][]bugzilla.Record {
	return groupBy(records, func(r bugzilla.Record) string { return r.Component })
}

// GroupByStatus partitions records by status, keeping input order.
func GroupByStatus(records []bugzilla.Record) map[string][]bugzilla.Record {
	return groupBy(records, func(r bugzilla.Record) string { return r.Status })
}

func groupBy(records []bugzilla.Record, key func(bugzilla.Record) string) map[string][]bugzilla.Record {
	grouped := make(map[string][]bugzilla.Record)
	for _, r := range records {
		k := key(r)
		grouped[k] = append(grouped[k], r)
	}
	return grouped
}

// IsL3 reports whether a record is or was an L3.
func IsL3(r bugzilla.Record) bool {
	return strings.Contains(r.Whiteboard, WasL3Marker) || strings.Contains(r.Whiteboard, OpenL3Marker)
}

// FilterL3 returns the L3 records in input order.
func FilterL3(records []bugzilla.Record) []bugzilla.Record {
	var l3s []bugzilla.Record
	for _, r := range records {
		if IsL3(r) {
			l3s = append(l3s, r)
		}
	}
	return l3s
}

// L3Cases counts marker occurrences, not records.
type L3Cases struct {
	Open   int
	Closed int
}

// CountL3Cases sums every openL3:/wasL3: occurrence across the L3 records.
func CountL3Cases(records []bugzilla.Record) L3Cases {
	var c L3Cases
	for _, r := range records {
		if !IsL3(r) {
			continue
		}
		c.Open += strings.Count(r.Whiteboard, OpenL3Marker)
		c.Closed += strings.Count(r.Whiteboard, WasL3Marker)
	}
	return c
}

// HasNeedinfo reports whether any flag is named "needinfo".
func HasNeedinfo(r bugzilla.Record) bool {
	for _, f := range r.Flags {
		if f.Name != nil && *f.Name == "needinfo" {
			return true
		}
	}
	return false
}

// CountNeedinfo returns how many records have a needinfo flag.
func CountNeedinfo(records []bugzilla.Record) int {
	n := 0
	for _, r := range records {
		if HasNeedinfo(r) {
			n++
		}
	}
	return n
}

// Priority buckets, in the order they are reported.
var PriorityBuckets = []string{"p1", "p2", "p3"}

// PriorityBucket maps "P1 - Urgent" to "p1". Values shorter than two
// characters or outside p1..p3 are rejected.
func PriorityBucket(priority string) (string, bool) {
	if len(priority) < 2 {
		return "", false
	}
	bucket := strings.ToLower(priority[:2])
	for _, b := range PriorityBuckets {
		if bucket == b {
			return bucket, true
		}
	}
	return "", false
}

// OpenRecords drops records whose status is exactly RESOLVED.
func OpenRecords(records []bugzilla.Record) []bugzilla.Record {
	var open []bugzilla.Record
	for _, r := range records {
		if r.Status != StatusResolved {
			open = append(open, r)
		}
	}
	return open
}
