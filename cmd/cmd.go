// Package cmd contains shared helpers for the command line binaries.
package cmd

// GetOrPanic unwraps a value-error pair, panicking on error.
func GetOrPanic[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

// GetOrPanic2 unwraps a two-value-error triple, panicking on error.
func GetOrPanic2[T1, T2 any](v1 T1, v2 T2, err error) (T1, T2) {
	if err != nil {
		panic(err)
	}

	return v1, v2
}

// OrPanic panics on error.
func OrPanic(err error) {
	if err != nil {
		panic(err)
	}
}
