package production

import (
	"fmt"
	"time"
)

// Enumeration is the ordered set of statuses, metrics and dates a source
// row is laid out against. Its cross product, status outermost and date
// innermost, is the column order of every value list.
type Enumeration struct {
	Statuses []Status
	Metrics  []Metric
	Dates    []time.Time
}

// NewEnumeration validates and builds an Enumeration.
// Every list must be non-empty and free of duplicates.
func NewEnumeration(statuses []Status, metrics []Metric, dates []time.Time) (Enumeration, error) {
	if len(statuses) == 0 || len(metrics) == 0 || len(dates) == 0 {
		return Enumeration{}, fmt.Errorf("%w: statuses, metrics and dates must be non-empty", ErrInvalidEnumeration)
	}

	seenStatus := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		if s == "" || seenStatus[s] {
			return Enumeration{}, fmt.Errorf("%w: status %q is empty or repeated", ErrInvalidEnumeration, s)
		}
		seenStatus[s] = true
	}

	seenMetric := make(map[Metric]bool, len(metrics))
	for _, m := range metrics {
		if m == "" || seenMetric[m] {
			return Enumeration{}, fmt.Errorf("%w: metric %q is empty or repeated", ErrInvalidEnumeration, m)
		}
		seenMetric[m] = true
	}

	normalized := make([]time.Time, len(dates))
	seenDate := make(map[string]bool, len(dates))
	for i, d := range dates {
		day := NewDate(d.Year(), d.Month(), d.Day())
		label := day.Format(DateLayout)
		if seenDate[label] {
			return Enumeration{}, fmt.Errorf("%w: date %s is repeated", ErrInvalidEnumeration, label)
		}
		seenDate[label] = true
		normalized[i] = day
	}

	return Enumeration{
		Statuses: append([]Status(nil), statuses...),
		Metrics:  append([]Metric(nil), metrics...),
		Dates:    normalized,
	}, nil
}

// DefaultEnumeration is the layout of the production workbook:
// {fact, forecast} x {Qliq, Qoil} x {2022-12-14, 2022-12-16}.
func DefaultEnumeration() Enumeration {
	return Enumeration{
		Statuses: []Status{StatusFact, StatusForecast},
		Metrics:  []Metric{MetricLiquid, MetricOil},
		Dates: []time.Time{
			NewDate(2022, time.December, 14),
			NewDate(2022, time.December, 16),
		},
	}
}

// Size is the number of values a source row must carry.
func (e Enumeration) Size() int {
	return len(e.Statuses) * len(e.Metrics) * len(e.Dates)
}

// Keys returns the cross product in column order.
func (e Enumeration) Keys() []Key {
	keys := make([]Key, 0, e.Size())
	for _, s := range e.Statuses {
		for _, m := range e.Metrics {
			for _, d := range e.Dates {
				keys = append(keys, Key{Status: s, Metric: m, Date: d})
			}
		}
	}
	return keys
}
