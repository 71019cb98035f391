package collect

// Taggable is anything carrying typed metadata: scopes and trace nodes.
type Taggable interface {
	GetTag(tag any) (any, bool)
	SetTag(tag any, val any)
}

// Tag is a type-safe key for metadata
type Tag[T any] struct {
	key string
}

// NewTag creates a new tag with the given key
func NewTag[T any](key string) Tag[T] {
	return Tag[T]{key: key}
}

// Key returns the tag's key (for debugging)
func (t Tag[T]) Key() string {
	return t.key
}

// Get retrieves the tag value from a taggable
func (t Tag[T]) Get(from Taggable) (T, bool) {
	val, ok := from.GetTag(t)
	if !ok {
		var zero T
		return zero, false
	}
	typed, err := SafeTypeAssertion[T](val)
	if err != nil {
		var zero T
		return zero, false
	}
	return typed, true
}

// MustGet retrieves the tag value or panics if not found
func (t Tag[T]) MustGet(from Taggable) T {
	val, ok := t.Get(from)
	if !ok {
		panic("tag " + t.key + " not found")
	}
	return val
}

// GetOrDefault retrieves the tag value or returns a default
func (t Tag[T]) GetOrDefault(from Taggable, defaultVal T) T {
	if val, ok := t.Get(from); ok {
		return val
	}
	return defaultVal
}

// Set stores the tag value on a taggable
func (t Tag[T]) Set(on Taggable, val T) {
	on.SetTag(t, val)
}
