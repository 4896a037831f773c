package clock

import "time"

// Clock supplies the current instant to services.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}

// System reports UTC wall-clock time truncated to microseconds, the
// precision both stores keep.
func System() Clock {
	return Func(func() time.Time {
		return time.Now().UTC().Truncate(time.Microsecond)
	})
}

// Fixed always reports t.
func Fixed(t time.Time) Clock {
	t = t.UTC()
	return Func(func() time.Time { return t })
}
