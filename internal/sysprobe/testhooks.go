package sysprobe

// SetOSReleasePath overrides the os-release location for tests.
// Returns a restore function.
func SetOSReleasePath(path string) func() {
	old := osReleasePath
	osReleasePath = path
	return func() { osReleasePath = old }
}

// SetLookPathFn overrides PATH lookup for tests. Returns a restore function.
func SetLookPathFn(fn func(file string) (string, error)) func() {
	old := lookPathFn
	lookPathFn = fn
	return func() { lookPathFn = old }
}
