package telemetry

// Must panics if err is not nil. It is used to create instruments at package
// initialization.
func Must[T any](instrument T, err error) T {
	if err != nil {
		panic(err)
	}
	return instrument
}
