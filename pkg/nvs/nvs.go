// Package nvs provides a namespaced, typed key-value store over an embedded
// storage engine, emulating the non-volatile storage region of an embedded
// device.
//
// Namespaces are fully isolated from each other. Key names and namespaces are
// a durable on-device schema: once a firmware version has shipped a key, its
// name must be preserved byte-for-byte by every later version.
//
// Reads never fail from the caller's point of view: on any problem they return
// the supplied default and record the precise failure kind on the scope, so
// code on the boot-safety path can treat a corrupt flash page as "use
// defaults" instead of crashing.
package nvs

// MaxKeyLength is the longest allowed key or namespace name. This mirrors the
// 15-character limit of the device's native key-value flash layout, so records
// written here stay portable to it.
const MaxKeyLength = 15

// Result describes the outcome of a store operation.
type Result int

const (
	// ResultOK indicates the operation succeeded.
	ResultOK Result = iota

	// ResultNotInitialized indicates the scope failed to open its namespace.
	ResultNotInitialized

	// ResultReadOnly indicates a write was attempted on a read-only scope.
	ResultReadOnly

	// ResultKeyNotFound indicates the key does not exist in the namespace.
	ResultKeyNotFound

	// ResultTypeMismatch indicates the stored value has a different type than requested.
	ResultTypeMismatch

	// ResultWriteFailed indicates the underlying engine failed to persist the value.
	ResultWriteFailed

	// ResultReadFailed indicates the stored value could not be decoded.
	ResultReadFailed

	// ResultNamespaceError indicates the namespace could not be opened.
	ResultNamespaceError

	// ResultKeyTooLong indicates the key or namespace exceeds MaxKeyLength.
	ResultKeyTooLong

	// ResultInvalidArgument indicates an empty key or namespace.
	ResultInvalidArgument
)

// String returns a human-readable description of the result.
func (r Result) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultNotInitialized:
		return "Not initialized"
	case ResultReadOnly:
		return "Read-only mode"
	case ResultKeyNotFound:
		return "Key not found"
	case ResultTypeMismatch:
		return "Type mismatch"
	case ResultWriteFailed:
		return "Write failed"
	case ResultReadFailed:
		return "Read failed"
	case ResultNamespaceError:
		return "Namespace error"
	case ResultKeyTooLong:
		return "Key too long"
	case ResultInvalidArgument:
		return "Invalid argument"
	default:
		return "Unknown error"
	}
}

// Value type tags. Every entry is stored as a single tag byte followed by the
// encoded payload, so a read with the wrong accessor is detected as a
// ResultTypeMismatch rather than silently misinterpreted.
const (
	tagString byte = 's'
	tagUint   byte = 'u'
	tagInt    byte = 'i'
	tagBool   byte = 'b'
	tagBytes  byte = 'x'
)
