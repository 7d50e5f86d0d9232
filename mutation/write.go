package mutation

// Transform computes a key's next value from its current one. ok reports
// whether the key currently holds a value; returning keep=false makes the
// key absent. Transforms must not modify old.
type Transform func(old any, ok bool) (next any, keep bool)

// Write pairs a cache key with the transform applied to it.
type Write struct {
	Key       string
	Transform Transform
}

// Typed builds a Write whose transform works on T. A current value that is
// not a T is treated as absent.
func Typed[T any](key string, fn func(old T, ok bool) (T, bool)) Write {
	return Write{Key: key, Transform: func(old any, ok bool) (any, bool) {
		var t T
		if ok {
			t, ok = old.(T)
		}
		next, keep := fn(t, ok)
		return next, keep
	}}
}

// Value builds a Write that replaces the key's value with v.
func Value(key string, v any) Write {
	return Write{Key: key, Transform: func(any, bool) (any, bool) { return v, true }}
}

// Remove builds a Write that makes the key absent.
func Remove(key string) Write {
	return Write{Key: key, Transform: func(any, bool) (any, bool) { return nil, false }}
}

// keysOf returns the distinct keys of writes in first-seen order.
func keysOf(writes ...[]Write) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, ws := range writes {
		for _, w := range ws {
			if !seen[w.Key] {
				seen[w.Key] = true
				keys = append(keys, w.Key)
			}
		}
	}
	return keys
}
