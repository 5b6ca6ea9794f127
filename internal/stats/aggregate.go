package stats

import (
	"cmp"
	"slices"

	"bgzfiltra/internal/bugzilla"
)

// Dimension identifies one aggregate view.
type Dimension string

const (
	DimStatus    Dimension = "status"
	DimComponent Dimension = "component"
	DimL3        Dimension = "l3"
	DimL3Cases   Dimension = "l3_cases"
	DimPriority  Dimension = "priority"
	DimAssigned  Dimension = "assigned"
)

// Dimensions lists the views in the order they are persisted.
var Dimensions = []Dimension{DimStatus, DimComponent, DimL3, DimL3Cases, DimPriority, DimAssigned}

// Row is one aggregate fact. The timestamp is attached by the writer so
// that all rows of a run share it.
type Row struct {
	Product string
	Value   string
	Count   int
}

// Views holds the rows of every dimension for one product.
type Views map[Dimension][]Row

// Total sums the counts of one view.
func (v Views) Total(d Dimension) int {
	total := 0
	for _, r := range v[d] {
		total += r.Count
	}
	return total
}

// Aggregate computes all six views for a product. Rows within a view are
// ordered by value, except the fixed-order L3 case and priority views.
func Aggregate(product string, records []bugzilla.Record) Views {
	l3s := FilterL3(records)

	views := Views{
		DimStatus:    groupRows(product, GroupByStatus(records)),
		DimComponent: groupRows(product, GroupByComponent(records)),
		DimL3:        groupRows(product, GroupByStatus(l3s)),
		DimAssigned:  groupRows(product, GroupByAssignee(OpenRecords(records))),
	}

	cases := CountL3Cases(l3s)
	views[DimL3Cases] = []Row{
		{Product: product, Value: "open", Count: cases.Open},
		{Product: product, Value: "closed", Count: cases.Closed},
	}

	buckets := make(map[string]int, len(PriorityBuckets))
	for _, r := range records {
		if b, ok := PriorityBucket(r.Priority); ok {
			buckets[b]++
		}
	}
	prio := make([]Row, 0, len(PriorityBuckets))
	for _, b := range PriorityBuckets {
		prio = append(prio, Row{Product: product, Value: b, Count: buckets[b]})
	}
	views[DimPriority] = prio

	return views
}

func groupRows(product string, groups map[string][]bugzilla.Record) []Row {
	rows := make([]Row, 0, len(groups))
	for value, members := range groups {
		rows = append(rows, Row{Product: product, Value: value, Count: len(members)})
	}
	slices.SortFunc(rows, func(a, b Row) int {
		return cmp.Compare(a.Value, b.Value)
	})
	return rows
}
