package market

import (
	"fmt"
	"time"
)

// DateRange is a closed interval [Start, End] in UTC.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, fmt.Errorf("date range bounds cannot be zero")
	}
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("date range end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}
	return DateRange{Start: start.UTC(), End: end.UTC()}, nil
}

func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

func (r DateRange) Contains(ts time.Time) bool {
	return !ts.Before(r.Start) && !ts.After(r.End)
}

// Days returns the inclusive span in calendar days.
func (r DateRange) Days() int {
	if r.IsZero() {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}
