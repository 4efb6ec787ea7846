package projections

import (
	"context"
	"fmt"
	"time"

	"territorios/internal/domain/territory"
)

// ReportSlots is the fixed number of assignment columns on the S-13 form.
const ReportSlots = 4

// GetS13ReportQuery carries report options.
type GetS13ReportQuery struct {
	// PrintDelay is how long the page waits before opening the print dialog.
	PrintDelay time.Duration
}

// ReportSlot is one assignment cell. Filled is false for blank placeholders.
type ReportSlot struct {
	Filled    bool
	Publisher string
	Assigned  string
	Completed string
}

// ReportRow is one territory line of the S-13 form.
type ReportRow struct {
	ID    string
	Slots [ReportSlots]ReportSlot
}

// GetS13ReportResult carries the report data.
type GetS13ReportResult struct {
	ServiceYear  string
	Rows         []ReportRow
	PrintDelayMS int64
}

// GetS13ReportDeps holds dependencies for GetS13Report.
type GetS13ReportDeps struct {
	Territories TerritorySource
	Now         func() time.Time
}

// QueryGetS13Report builds the S-13 assignment record from the full list.
// PRE: deps.Territories and deps.Now are non-nil
// POST: rows sorted by territory id; each row holds the latest ReportSlots
// history entries, oldest first, padded with blank slots
// INVARIANT: history is read as stored; nothing is synthesized here
func QueryGetS13Report(_ context.Context, query GetS13ReportQuery, deps GetS13ReportDeps) (GetS13ReportResult, error) {
	list := territory.SortForReport(deps.Territories.All())

	rows := make([]ReportRow, 0, len(list))
	for _, t := range list {
		row := ReportRow{ID: t.ID}
		for i, a := range t.RecentHistory(ReportSlots) {
			row.Slots[i] = ReportSlot{
				Filled:    true,
				Publisher: a.Publisher,
				Assigned:  territory.FormatShort(a.StartDate),
				Completed: territory.FormatShort(a.EndDate),
			}
		}
		rows = append(rows, row)
	}

	return GetS13ReportResult{
		ServiceYear:  ServiceYear(deps.Now()),
		Rows:         rows,
		PrintDelayMS: query.PrintDelay.Milliseconds(),
	}, nil
}

// ServiceYear renders "YYYY/YYYY+1" from the calendar year of now.
func ServiceYear(now time.Time) string {
	y := now.Year()
	return fmt.Sprintf("%d/%d", y, y+1)
}
