package table

import (
	"fmt"
	"sort"
	"strings"
)

// NullSentinel is the literal string treated as a null value by
// concat-unique aggregation, in addition to actual nil cells. External
// gene/disease tables commonly serialize missing values this way.
const NullSentinel = "None"

// AggKind enumerates the supported aggregation directives. The set is
// closed: reducers dispatch on the kind, and an unknown kind is an error
// rather than a pass-through.
type AggKind int

const (
	// AggConcatUniques deduplicates the group's values, drops nulls and
	// the "None" sentinel, and joins the survivors with a delimiter.
	// The join order is implementation-defined; callers must not assume
	// it is stable across runs.
	AggConcatUniques AggKind = iota

	// AggConcat joins all values in row order, duplicates preserved.
	AggConcat

	// AggFirst takes the first non-null value of the group.
	AggFirst

	// AggLast takes the last non-null value of the group.
	AggLast

	// AggMin takes the numeric minimum, skipping nulls.
	AggMin

	// AggMax takes the numeric maximum, skipping nulls.
	AggMax

	// AggSum sums numeric values, skipping nulls.
	AggSum

	// AggMean averages numeric values, skipping nulls.
	AggMean

	// AggMedian takes the numeric median, skipping nulls.
	AggMedian

	// AggSize counts all rows in the group, nulls included.
	AggSize
)

var aggNames = map[AggKind]string{
	AggConcatUniques: "concat_uniques",
	AggConcat:        "concat",
	AggFirst:         "first",
	AggLast:          "last",
	AggMin:           "min",
	AggMax:           "max",
	AggSum:           "sum",
	AggMean:          "mean",
	AggMedian:        "median",
	AggSize:          "size",
}

// String returns the directive name (e.g. "concat_uniques").
func (k AggKind) String() string {
	if n, ok := aggNames[k]; ok {
		return n
	}
	return fmt.Sprintf("AggKind(%d)", int(k))
}

// ParseAggKind maps a directive name to its AggKind.
// Unknown names fail; there is no default.
func ParseAggKind(name string) (AggKind, error) {
	for k, n := range aggNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown aggregation directive %q", name)
}

// Agg is a configured aggregation directive.
type Agg struct {
	// Kind selects the reducer.
	Kind AggKind

	// Sep is the delimiter for concat kinds. Defaults to "|".
	Sep string
}

// ConcatUniques is the default aggregation used for annotation joins.
var ConcatUniques = Agg{Kind: AggConcatUniques}

func (a Agg) sep() string {
	if a.Sep == "" {
		return "|"
	}
	return a.Sep
}

// Reduce collapses one group's values for a single column.
// Numeric reducers fail on non-numeric values rather than guess.
func (a Agg) Reduce(values []any) (any, error) {
	switch a.Kind {
	case AggConcatUniques:
		return concatUniques(values, a.sep()), nil
	case AggConcat:
		return concatAll(values, a.sep()), nil
	case AggFirst:
		for _, v := range values {
			if v != nil {
				return v, nil
			}
		}
		return nil, nil
	case AggLast:
		for i := len(values) - 1; i >= 0; i-- {
			if values[i] != nil {
				return values[i], nil
			}
		}
		return nil, nil
	case AggSize:
		return int64(len(values)), nil
	case AggMin, AggMax, AggSum, AggMean, AggMedian:
		nums, err := numericValues(values)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return nil, nil
		}
		return reduceNumeric(a.Kind, nums), nil
	default:
		return nil, fmt.Errorf("unknown aggregation directive %v", a.Kind)
	}
}

// concatUniques collects the group's values into a set, excluding nil cells
// and the "None" sentinel, and serializes the set with sep. A single
// surviving value is returned without any delimiter. Insertion order is kept
// so the output is deterministic for a given input, but the order is not
// part of the contract.
func concatUniques(values []any, sep string) any {
	seen := make(map[string]struct{}, len(values))
	var parts []string
	for _, v := range values {
		if v == nil {
			continue
		}
		s := cellString(v)
		if s == NullSentinel {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return nil
	}
	return strings.Join(parts, sep)
}

// concatAll joins every value in row order, duplicates preserved.
// Nil cells are skipped; the "None" sentinel is kept (it is only a null for
// the unique-concat path).
func concatAll(values []any, sep string) any {
	var parts []string
	for _, v := range values {
		if v == nil {
			continue
		}
		parts = append(parts, cellString(v))
	}
	if len(parts) == 0 {
		return nil
	}
	return strings.Join(parts, sep)
}

func reduceNumeric(kind AggKind, nums []float64) any {
	switch kind {
	case AggMin:
		m := nums[0]
		for _, v := range nums[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case AggMax:
		m := nums[0]
		for _, v := range nums[1:] {
			if v > m {
				m = v
			}
		}
		return m
	case AggSum:
		var s float64
		for _, v := range nums {
			s += v
		}
		return s
	case AggMean:
		var s float64
		for _, v := range nums {
			s += v
		}
		return s / float64(len(nums))
	case AggMedian:
		sorted := make([]float64, len(nums))
		copy(sorted, nums)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid]
		}
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return nil
}

// numericValues converts the non-null cells to float64.
func numericValues(values []any) ([]float64, error) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		f, ok := cellFloat(v)
		if !ok {
			return nil, fmt.Errorf("non-numeric value %v (%T) in numeric aggregation", v, v)
		}
		nums = append(nums, f)
	}
	return nums, nil
}

// cellString renders one cell for concatenation.
func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// cellFloat converts a numeric cell to float64.
func cellFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
