package hook

// guard returns fn's result, or fallback if fn panics.
func guard(fallback string, fn func() string) (out string) {
	defer func() {
		if recover() != nil {
			out = fallback
		}
	}()
	return fn()
}
