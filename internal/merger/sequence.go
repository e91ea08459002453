package merger

import (
	"fmt"
	"time"

	"github.com/JustJay7/docket-merger/internal/normalize"
	"github.com/JustJay7/docket-merger/internal/report"
)

type entryOrder int

const (
	orderUnknown entryOrder = iota
	orderAscending
	orderDescending
)

// detectOrder finds the first adjacent pair of entries whose numbers are both
// integers and differ, and reports which way they run.
func detectOrder(entries []report.DocketEntry) entryOrder {
	for i := 0; i+1 < len(entries); i++ {
		cur := normalize.EntryNumber(entries[i].DocumentNumber)
		next := normalize.EntryNumber(entries[i+1].DocumentNumber)
		if cur == nil || next == nil || *cur == *next {
			continue
		}
		if *cur < *next {
			return orderAscending
		}
		return orderDescending
	}
	return orderUnknown
}

// SequenceNumber formats a chronological sort key such as "2014-01-02.003".
func SequenceNumber(day time.Time, index int) string {
	return fmt.Sprintf("%s.%03d", day.Format("2006-01-02"), index)
}

// AssignSequenceNumbers returns the entries in ascending order with
// RecapSequenceNumber set. Entries sharing a filed date are numbered from 1
// in feed order. localDate converts a filed date to the court's calendar
// day. The input slice is left untouched.
func AssignSequenceNumbers(entries []report.DocketEntry, localDate func(*report.Date) time.Time) []report.DocketEntry {
	out := make([]report.DocketEntry, len(entries))
	copy(out, entries)
	if detectOrder(out) == orderDescending {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	var prevDay time.Time
	index := 0
	for i := range out {
		if out[i].DateFiled == nil {
			out[i].RecapSequenceNumber = ""
			continue
		}
		day := localDate(out[i].DateFiled)
		if index > 0 && day.Equal(prevDay) {
			index++
		} else {
			index = 1
		}
		prevDay = day
		out[i].RecapSequenceNumber = SequenceNumber(day, index)
	}
	return out
}

// localDateFunc converts filed dates to courtID's calendar.
func (m *Merger) localDateFunc(courtID string) func(*report.Date) time.Time {
	return func(d *report.Date) time.Time {
		return m.courts.LocalDate(courtID, d.Time, d.HasClock)
	}
}
