package nvs

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"
)

// Scope is a handle opened against one namespace, in read-only or read-write
// mode. Every operation validates its key before touching storage and records
// its outcome, retrievable via LastResult independent of the returned value.
//
// A Scope must not be copied. Close releases it; operations on a closed scope
// record ResultNotInitialized.
type Scope struct {
	store      *Store
	namespace  string
	opened     bool
	readonly   bool
	lastResult Result
}

// IsOpen reports whether the namespace was opened successfully.
func (sc *Scope) IsOpen() bool { return sc.opened }

// IsReadOnly reports whether the scope was opened in read-only mode.
func (sc *Scope) IsReadOnly() bool { return sc.readonly }

// Namespace returns the namespace name this scope is bound to.
func (sc *Scope) Namespace() string { return sc.namespace }

// LastResult returns the result code recorded by the most recent operation.
func (sc *Scope) LastResult() Result { return sc.lastResult }

// Close releases the scope. It is safe to call multiple times.
func (sc *Scope) Close() {
	sc.opened = false
}

func (sc *Scope) validateKey(key string) bool {
	if key == "" {
		sc.lastResult = ResultInvalidArgument
		return false
	}
	if len(key) > MaxKeyLength {
		sc.lastResult = ResultKeyTooLong
		sc.store.log.Warn("Key too long", "namespace", sc.namespace, "key", key, "max", MaxKeyLength)
		return false
	}
	return true
}

// checkWritable runs the common preamble for write operations.
func (sc *Scope) checkWritable(key string) bool {
	if !sc.opened {
		sc.lastResult = ResultNotInitialized
		return false
	}
	if sc.readonly {
		sc.lastResult = ResultReadOnly
		sc.store.log.Warn("Write rejected on read-only scope", "namespace", sc.namespace, "key", key)
		return false
	}
	return sc.validateKey(key)
}

func (sc *Scope) put(key string, tag byte, payload []byte) Result {
	if !sc.checkWritable(key) {
		return sc.lastResult
	}

	value := make([]byte, 0, len(payload)+1)
	value = append(value, tag)
	value = append(value, payload...)

	err := sc.store.update(sc.namespace, func(b *bolt.Bucket) error {
		return b.Put([]byte(key), value)
	})
	if err != nil {
		sc.lastResult = ResultWriteFailed
		sc.store.log.Error(err, "Failed to write value", "namespace", sc.namespace, "key", key)
		return sc.lastResult
	}

	sc.lastResult = ResultOK
	return sc.lastResult
}

// get fetches the raw entry for key. A nil return means the recorded result
// explains why; callers fall back to their default.
func (sc *Scope) get(key string, tag byte) []byte {
	if !sc.opened {
		sc.lastResult = ResultNotInitialized
		return nil
	}
	if !sc.validateKey(key) {
		return nil
	}

	var value []byte
	err := sc.store.view(sc.namespace, func(b *bolt.Bucket) error {
		if raw := b.Get([]byte(key)); raw != nil {
			// Copy out: bbolt memory is only valid inside the transaction.
			value = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		sc.lastResult = ResultReadFailed
		return nil
	}
	if value == nil {
		sc.lastResult = ResultKeyNotFound
		return nil
	}
	if len(value) < 1 || value[0] != tag {
		sc.lastResult = ResultTypeMismatch
		sc.store.log.Warn("Stored value has unexpected type", "namespace", sc.namespace, "key", key)
		return nil
	}

	sc.lastResult = ResultOK
	return value[1:]
}

// PutString stores a string value under key.
func (sc *Scope) PutString(key, value string) Result {
	return sc.put(key, tagString, []byte(value))
}

// GetString retrieves the string stored under key, or def if unavailable.
func (sc *Scope) GetString(key, def string) string {
	payload := sc.get(key, tagString)
	if payload == nil {
		return def
	}
	return string(payload)
}

// PutUint stores an unsigned 32-bit integer under key.
func (sc *Scope) PutUint(key string, value uint32) Result {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	return sc.put(key, tagUint, buf[:])
}

// GetUint retrieves the unsigned 32-bit integer stored under key, or def if
// unavailable.
func (sc *Scope) GetUint(key string, def uint32) uint32 {
	payload := sc.get(key, tagUint)
	if payload == nil {
		return def
	}
	if len(payload) != 4 {
		sc.lastResult = ResultReadFailed
		return def
	}
	return binary.LittleEndian.Uint32(payload)
}

// PutInt stores a signed 32-bit integer under key.
func (sc *Scope) PutInt(key string, value int32) Result {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(value))
	return sc.put(key, tagInt, buf[:])
}

// GetInt retrieves the signed 32-bit integer stored under key, or def if
// unavailable.
func (sc *Scope) GetInt(key string, def int32) int32 {
	payload := sc.get(key, tagInt)
	if payload == nil {
		return def
	}
	if len(payload) != 4 {
		sc.lastResult = ResultReadFailed
		return def
	}
	return int32(binary.LittleEndian.Uint32(payload))
}

// PutBool stores a boolean value under key.
func (sc *Scope) PutBool(key string, value bool) Result {
	b := byte(0)
	if value {
		b = 1
	}
	return sc.put(key, tagBool, []byte{b})
}

// GetBool retrieves the boolean stored under key, or def if unavailable.
func (sc *Scope) GetBool(key string, def bool) bool {
	payload := sc.get(key, tagBool)
	if payload == nil {
		return def
	}
	if len(payload) != 1 {
		sc.lastResult = ResultReadFailed
		return def
	}
	return payload[0] != 0
}

// PutBytes stores a raw byte blob under key.
func (sc *Scope) PutBytes(key string, value []byte) Result {
	return sc.put(key, tagBytes, value)
}

// GetBytes retrieves the byte blob stored under key, or def if unavailable.
// The returned slice is a copy owned by the caller.
func (sc *Scope) GetBytes(key string, def []byte) []byte {
	payload := sc.get(key, tagBytes)
	if payload == nil {
		return def
	}
	return payload
}

// GetBytesLength returns the length of the blob stored under key, or 0 if
// the key is absent or holds a different type.
func (sc *Scope) GetBytesLength(key string) int {
	payload := sc.get(key, tagBytes)
	return len(payload)
}

// HasKey reports whether key exists in the namespace, regardless of type.
func (sc *Scope) HasKey(key string) bool {
	if !sc.opened {
		sc.lastResult = ResultNotInitialized
		return false
	}
	if !sc.validateKey(key) {
		return false
	}

	found := false
	err := sc.store.view(sc.namespace, func(b *bolt.Bucket) error {
		found = b.Get([]byte(key)) != nil
		return nil
	})
	if err != nil {
		sc.lastResult = ResultReadFailed
		return false
	}

	sc.lastResult = ResultOK
	return found
}

// Remove deletes key from the namespace. Removing an absent key records
// ResultKeyNotFound.
func (sc *Scope) Remove(key string) Result {
	if !sc.checkWritable(key) {
		return sc.lastResult
	}

	existed := false
	err := sc.store.update(sc.namespace, func(b *bolt.Bucket) error {
		existed = b.Get([]byte(key)) != nil
		return b.Delete([]byte(key))
	})
	if err != nil {
		sc.lastResult = ResultWriteFailed
		return sc.lastResult
	}
	if !existed {
		sc.lastResult = ResultKeyNotFound
		return sc.lastResult
	}

	sc.lastResult = ResultOK
	return sc.lastResult
}

// Clear removes every key in the namespace.
func (sc *Scope) Clear() Result {
	if !sc.opened {
		sc.lastResult = ResultNotInitialized
		return sc.lastResult
	}
	if sc.readonly {
		sc.lastResult = ResultReadOnly
		return sc.lastResult
	}

	err := sc.store.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(sc.namespace)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(sc.namespace))
		return err
	})
	if err != nil {
		sc.lastResult = ResultWriteFailed
		sc.store.log.Error(err, "Failed to clear namespace", "namespace", sc.namespace)
		return sc.lastResult
	}

	sc.lastResult = ResultOK
	return sc.lastResult
}
