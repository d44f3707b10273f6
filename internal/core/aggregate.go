package core

import "sort"

// EntriesForMonth filters the ledger down to the expenses whose OccurredAt
// falls within the given calendar month. Pure: the input ledger is never
// modified and unchanged inputs yield identical results.
func EntriesForMonth(ledger Ledger, mk MonthKey) Ledger {
	var out Ledger
	for _, e := range ledger {
		if mk.Contains(e.OccurredAt) {
			out = append(out, e)
		}
	}
	return out
}

// TotalForMonth sums the amounts of the month's entries. An empty result
// yields zero. Invalid amounts cannot reach the ledger (rejected at
// creation), so every stored entry participates in the sum.
func TotalForMonth(ledger Ledger, mk MonthKey) Money {
	var cents int64
	for _, e := range ledger {
		if mk.Contains(e.OccurredAt) {
			cents += e.Amount.Cents
		}
	}
	return Money{Cents: cents}
}

// SortedByOccurredDesc returns a copy sorted most recent first. The sort is
// stable so same-instant entries keep their ledger order.
func SortedByOccurredDesc(entries Ledger) Ledger {
	out := make(Ledger, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}
