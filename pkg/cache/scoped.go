package cache

// ScopedKeyer wraps a Keyer with a prefix so several deployments (or a
// staging and a production server) can share one Redis or MongoDB backend
// without their keys colliding.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ResultKey generates a prefixed key for a pipeline result.
func (k *ScopedKeyer) ResultKey(threshold, populationYear int) string {
	return k.prefix + k.inner.ResultKey(threshold, populationYear)
}

// HTTPKey generates a prefixed key for an upstream HTTP response.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}
