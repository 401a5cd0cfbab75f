package transaction

import "fmt"

// Result is the outcome of a transactional operation. Exactly one of Data
// (when Success) or Err is meaningful.
type Result[T any] struct {
	Success bool
	Data    T
	Err     error
}

// Ok returns a successful result.
func Ok[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail returns a failed result.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// Unwrap converts the result to the usual (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	if !r.Success {
		var zero T
		return zero, r.Err
	}
	return r.Data, nil
}

// castResult narrows a Result[any] produced by a Manager back to T.
func castResult[T any](r Result[any]) Result[T] {
	if !r.Success {
		return Fail[T](r.Err)
	}
	if r.Data == nil {
		var zero T
		return Ok(zero)
	}
	v, ok := r.Data.(T)
	if !ok {
		return Fail[T](fmt.Errorf("transaction result has type %T", r.Data))
	}
	return Ok(v)
}
