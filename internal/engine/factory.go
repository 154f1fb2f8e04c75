package engine

// DefaultLoader returns the Loader used by the server binary. Builds without
// a native recognition backend get the stub engine, which keeps the full
// session and model-lifecycle machinery runnable; a whisper.cpp-backed Loader
// slots in here behind a build tag.
func DefaultLoader() Loader {
	return StubLoader()
}
