package nvs

// One-shot helpers for callers that need a single read or write and do not
// want to manage scope lifetime themselves.

// ReadString reads a string from the given namespace, returning def if the
// namespace or key is unavailable.
func ReadString(s *Store, namespace, key, def string) string {
	sc := s.ScopeReadOnly(namespace)
	defer sc.Close()
	if !sc.IsOpen() {
		return def
	}
	return sc.GetString(key, def)
}

// WriteString writes a string to the given namespace.
func WriteString(s *Store, namespace, key, value string) Result {
	sc := s.Scope(namespace)
	defer sc.Close()
	if !sc.IsOpen() {
		return sc.LastResult()
	}
	return sc.PutString(key, value)
}

// ReadUint reads an unsigned 32-bit integer from the given namespace,
// returning def if the namespace or key is unavailable.
func ReadUint(s *Store, namespace, key string, def uint32) uint32 {
	sc := s.ScopeReadOnly(namespace)
	defer sc.Close()
	if !sc.IsOpen() {
		return def
	}
	return sc.GetUint(key, def)
}

// WriteUint writes an unsigned 32-bit integer to the given namespace.
func WriteUint(s *Store, namespace, key string, value uint32) Result {
	sc := s.Scope(namespace)
	defer sc.Close()
	if !sc.IsOpen() {
		return sc.LastResult()
	}
	return sc.PutUint(key, value)
}

// ReadBool reads a boolean from the given namespace, returning def if the
// namespace or key is unavailable.
func ReadBool(s *Store, namespace, key string, def bool) bool {
	sc := s.ScopeReadOnly(namespace)
	defer sc.Close()
	if !sc.IsOpen() {
		return def
	}
	return sc.GetBool(key, def)
}

// WriteBool writes a boolean to the given namespace.
func WriteBool(s *Store, namespace, key string, value bool) Result {
	sc := s.Scope(namespace)
	defer sc.Close()
	if !sc.IsOpen() {
		return sc.LastResult()
	}
	return sc.PutBool(key, value)
}
