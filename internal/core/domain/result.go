package domain

// ParseResult is the outcome of parsing free-form model output.
// Either Ok holds a value or the parse fell back with a reason.
type ParseResult[T any] struct {
	value  T
	reason string
	ok     bool
}

// Ok wraps a successfully parsed value.
func Ok[T any](v T) ParseResult[T] {
	return ParseResult[T]{value: v, ok: true}
}

// Fallback records that parsing failed and why.
func Fallback[T any](reason string) ParseResult[T] {
	return ParseResult[T]{reason: reason}
}

// IsOk reports whether the parse succeeded.
func (r ParseResult[T]) IsOk() bool {
	return r.ok
}

// Value returns the parsed value and whether it is valid.
func (r ParseResult[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Reason returns the fallback reason, empty for Ok results.
func (r ParseResult[T]) Reason() string {
	return r.reason
}

// OrElse returns the parsed value, or def when the parse fell back.
func (r ParseResult[T]) OrElse(def T) T {
	if r.ok {
		return r.value
	}
	return def
}

// ItemResult is the outcome of one item in a per-item loop
// (a content batch, a cluster label).
type ItemResult[T any] struct {
	Index int
	Value T
	Err   error
}

// Failed reports whether the item failed.
func (r ItemResult[T]) Failed() bool {
	return r.Err != nil
}

// AllFailed reports whether every item failed. An empty list has not failed.
func AllFailed[T any](results []ItemResult[T]) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Failed() {
			return false
		}
	}
	return true
}

// Successes returns the values of the items that succeeded, in order.
func Successes[T any](results []ItemResult[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if !r.Failed() {
			out = append(out, r.Value)
		}
	}
	return out
}
