package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// RunNumbers is an ordered set of run numbers.
//
// A single measurement carries one number; a merged load carries one number
// per contributing file. The zero value is the empty set.
type RunNumbers []int

// NewRunNumbers returns the sorted, de-duplicated set of the given numbers.
func NewRunNumbers(numbers ...int) RunNumbers {
	if len(numbers) == 0 {
		return nil
	}
	out := slices.Clone(numbers)
	slices.Sort(out)
	return RunNumbers(slices.Compact(out))
}

// MaxExpandedRuns bounds how many run numbers one expression may expand to.
const MaxExpandedRuns = 10000

// ParseRunNumbers parses a run-number expression.
//
// Terms are joined by '+'. Each term is a non-negative number ("7") or an
// inclusive range ("7:10"). Whitespace around terms is ignored:
//
//	ParseRunNumbers("7:10 + 3:5 + 1") // [1 3 4 5 7 8 9 10]
//
// Expressions expanding to more than MaxExpandedRuns numbers are rejected.
func ParseRunNumbers(expr string) (RunNumbers, error) {
	var numbers []int
	for _, term := range strings.Split(expr, "+") {
		term = strings.TrimSpace(term)
		if term == "" {
			return nil, fmt.Errorf("empty term in run expression %q", expr)
		}
		lo, hi, isRange := strings.Cut(term, ":")
		first, err := parseRunNumber(lo)
		if err != nil {
			return nil, err
		}
		if !isRange {
			numbers = append(numbers, first)
			continue
		}
		last, err := parseRunNumber(hi)
		if err != nil {
			return nil, err
		}
		if last < first {
			return nil, fmt.Errorf("invalid run range %q: end before start", term)
		}
		if last-first >= MaxExpandedRuns-len(numbers) {
			return nil, fmt.Errorf("run expression %q expands to more than %d runs", expr, MaxExpandedRuns)
		}
		for n := first; n <= last; n++ {
			numbers = append(numbers, n)
		}
	}
	return NewRunNumbers(numbers...), nil
}

func parseRunNumber(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid run number %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid run number %q: negative", s)
	}
	return n, nil
}

// First returns the lowest run number, or 0 for the empty set.
func (r RunNumbers) First() int {
	if len(r) == 0 {
		return 0
	}
	return r[0]
}

// IsZero reports whether the set is empty.
func (r RunNumbers) IsZero() bool {
	return len(r) == 0
}

// Equal reports whether both sets hold the same numbers.
func (r RunNumbers) Equal(other RunNumbers) bool {
	return slices.Equal(r, other)
}

// Union returns the sorted set of numbers present in either set.
func (r RunNumbers) Union(other RunNumbers) RunNumbers {
	all := append(slices.Clone(r), other...)
	return NewRunNumbers(all...)
}

// Long joins every number with '+': "1+3+4+5".
func (r RunNumbers) Long() string {
	parts := make([]string, len(r))
	for i, n := range r {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, "+")
}

// Short collapses consecutive numbers into ranges: "1+3:5+7:10".
func (r RunNumbers) Short() string {
	var parts []string
	for i := 0; i < len(r); {
		j := i
		for j+1 < len(r) && r[j+1] == r[j]+1 {
			j++
		}
		if j > i {
			parts = append(parts, fmt.Sprintf("%d:%d", r[i], r[j]))
		} else {
			parts = append(parts, strconv.Itoa(r[i]))
		}
		i = j + 1
	}
	return strings.Join(parts, "+")
}

// Statement renders the numbers as an English list: "7, 8, and 9".
func (r RunNumbers) Statement() string {
	switch len(r) {
	case 0:
		return ""
	case 1:
		return strconv.Itoa(r[0])
	case 2:
		return fmt.Sprintf("%d and %d", r[0], r[1])
	}
	parts := make([]string, len(r))
	for i, n := range r {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1]
}

// Key returns the RunKey for this set of numbers.
func (r RunNumbers) Key() RunKey {
	return RunKey(r.Long())
}

// String implements fmt.Stringer using the short form.
func (r RunNumbers) String() string {
	return r.Short()
}
