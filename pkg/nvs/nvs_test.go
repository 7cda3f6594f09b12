package nvs

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/bootguard/pkg/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStoreWithLogger(filepath.Join(t.TempDir(), "nvs.db"), log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestScopeOpen(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("testns")
	defer sc.Close()
	assert.True(t, sc.IsOpen())
	assert.False(t, sc.IsReadOnly())
	assert.Equal(t, "testns", sc.Namespace())
	assert.Equal(t, ResultOK, sc.LastResult())
}

func TestScopeOpenReadOnlyMissingNamespace(t *testing.T) {
	s := newTestStore(t)

	sc := s.ScopeReadOnly("never-written")
	defer sc.Close()
	assert.False(t, sc.IsOpen())
	assert.Equal(t, ResultNamespaceError, sc.LastResult())

	// Reads on the failed scope still succeed with the default.
	assert.Equal(t, "fallback", sc.GetString("key", "fallback"))
	assert.Equal(t, ResultNotInitialized, sc.LastResult())
}

func TestScopeInvalidNamespace(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("")
	assert.False(t, sc.IsOpen())
	assert.Equal(t, ResultInvalidArgument, sc.LastResult())

	long := s.Scope(strings.Repeat("n", MaxKeyLength+1))
	assert.False(t, long.IsOpen())
	assert.Equal(t, ResultKeyTooLong, long.LastResult())
}

func TestStringRoundTrip(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	defer sc.Close()

	assert.Equal(t, ResultOK, sc.PutString("greeting", "hello"))
	assert.Equal(t, "hello", sc.GetString("greeting", "default"))
	assert.Equal(t, ResultOK, sc.LastResult())

	// Empty strings are stored, not treated as absent.
	assert.Equal(t, ResultOK, sc.PutString("empty", ""))
	assert.Equal(t, "", sc.GetString("empty", "default"))
	assert.Equal(t, ResultOK, sc.LastResult())
}

func TestGetDefaultRecordsKeyNotFound(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	defer sc.Close()

	assert.Equal(t, "fallback", sc.GetString("missing", "fallback"))
	assert.Equal(t, ResultKeyNotFound, sc.LastResult())

	assert.Equal(t, uint32(42), sc.GetUint("missing", 42))
	assert.Equal(t, ResultKeyNotFound, sc.LastResult())

	assert.True(t, sc.GetBool("missing", true))
	assert.Equal(t, ResultKeyNotFound, sc.LastResult())
}

func TestNumericRoundTrip(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	defer sc.Close()

	assert.Equal(t, ResultOK, sc.PutUint("u", 0xFFFFFFFF))
	assert.Equal(t, uint32(0xFFFFFFFF), sc.GetUint("u", 0))

	assert.Equal(t, ResultOK, sc.PutInt("i", -123456))
	assert.Equal(t, int32(-123456), sc.GetInt("i", 0))

	assert.Equal(t, ResultOK, sc.PutUint("zero", 0))
	assert.Equal(t, uint32(0), sc.GetUint("zero", 7))
	assert.Equal(t, ResultOK, sc.LastResult())
}

func TestBoolRoundTrip(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	defer sc.Close()

	assert.Equal(t, ResultOK, sc.PutBool("on", true))
	assert.True(t, sc.GetBool("on", false))

	assert.Equal(t, ResultOK, sc.PutBool("off", false))
	assert.False(t, sc.GetBool("off", true))
}

func TestBytesRoundTrip(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	defer sc.Close()

	blob := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	assert.Equal(t, ResultOK, sc.PutBytes("blob", blob))
	assert.Equal(t, blob, sc.GetBytes("blob", nil))
	assert.Equal(t, 4, sc.GetBytesLength("blob"))

	assert.Equal(t, 0, sc.GetBytesLength("missing"))
	assert.Equal(t, ResultKeyNotFound, sc.LastResult())
}

func TestTypeMismatch(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	defer sc.Close()

	require.Equal(t, ResultOK, sc.PutString("key", "text"))

	assert.Equal(t, uint32(9), sc.GetUint("key", 9))
	assert.Equal(t, ResultTypeMismatch, sc.LastResult())

	assert.False(t, sc.GetBool("key", false))
	assert.Equal(t, ResultTypeMismatch, sc.LastResult())
}

func TestReadOnlyEnforcement(t *testing.T) {
	s := newTestStore(t)

	rw := s.Scope("ns")
	require.Equal(t, ResultOK, rw.PutString("key", "original"))
	rw.Close()

	ro := s.ScopeReadOnly("ns")
	require.True(t, ro.IsOpen())
	assert.True(t, ro.IsReadOnly())

	assert.Equal(t, ResultReadOnly, ro.PutString("key", "mutated"))
	assert.Equal(t, ResultReadOnly, ro.PutUint("key2", 1))
	assert.Equal(t, ResultReadOnly, ro.Remove("key"))
	assert.Equal(t, ResultReadOnly, ro.Clear())
	ro.Close()

	// The rejected writes left nothing behind.
	check := s.Scope("ns")
	defer check.Close()
	assert.Equal(t, "original", check.GetString("key", ""))
	assert.False(t, check.HasKey("key2"))
}

func TestNamespaceIsolation(t *testing.T) {
	s := newTestStore(t)

	ns1 := s.Scope("ns1")
	defer ns1.Close()
	require.Equal(t, ResultOK, ns1.PutString("testkey", "abc"))

	ns2 := s.Scope("ns2")
	defer ns2.Close()
	assert.False(t, ns2.HasKey("testkey"))
	assert.Equal(t, "unset", ns2.GetString("testkey", "unset"))
	assert.Equal(t, ResultKeyNotFound, ns2.LastResult())
}

func TestKeyValidation(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	defer sc.Close()

	maxKey := strings.Repeat("k", MaxKeyLength)
	assert.Equal(t, ResultOK, sc.PutString(maxKey, "fits"))
	assert.Equal(t, "fits", sc.GetString(maxKey, ""))

	tooLong := maxKey + "k"
	assert.Equal(t, ResultKeyTooLong, sc.PutString(tooLong, "no"))
	assert.Equal(t, "def", sc.GetString(tooLong, "def"))
	assert.Equal(t, ResultKeyTooLong, sc.LastResult())

	assert.Equal(t, ResultInvalidArgument, sc.PutString("", "no"))
	assert.Equal(t, "def", sc.GetString("", "def"))
	assert.Equal(t, ResultInvalidArgument, sc.LastResult())
}

func TestHasKeyRemove(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	defer sc.Close()

	require.Equal(t, ResultOK, sc.PutString("key", "v"))
	assert.True(t, sc.HasKey("key"))

	assert.Equal(t, ResultOK, sc.Remove("key"))
	assert.False(t, sc.HasKey("key"))

	assert.Equal(t, ResultKeyNotFound, sc.Remove("key"))
}

func TestClear(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	defer sc.Close()
	require.Equal(t, ResultOK, sc.PutString("a", "1"))
	require.Equal(t, ResultOK, sc.PutUint("b", 2))

	assert.Equal(t, ResultOK, sc.Clear())
	assert.False(t, sc.HasKey("a"))
	assert.False(t, sc.HasKey("b"))

	// The namespace stays writable after a clear.
	assert.Equal(t, ResultOK, sc.PutString("a", "again"))
	assert.Equal(t, "again", sc.GetString("a", ""))
}

func TestPersistenceAcrossScopes(t *testing.T) {
	s := newTestStore(t)

	first := s.Scope("ns")
	require.Equal(t, ResultOK, first.PutString("durable", "value"))
	first.Close()

	second := s.ScopeReadOnly("ns")
	defer second.Close()
	assert.Equal(t, "value", second.GetString("durable", ""))
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nvs.db")

	s, err := OpenStoreWithLogger(path, log.NewNopLogger())
	require.NoError(t, err)
	sc := s.Scope("boot")
	require.Equal(t, ResultOK, sc.PutUint("boot_count", 5))
	sc.Close()
	require.NoError(t, s.Close())

	// Simulated reboot: a fresh store handle sees the committed value.
	s2, err := OpenStoreWithLogger(path, log.NewNopLogger())
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, uint32(5), ReadUint(s2, "boot", "boot_count", 0))
}

func TestClosedScopeRecordsNotInitialized(t *testing.T) {
	s := newTestStore(t)

	sc := s.Scope("ns")
	sc.Close()

	assert.Equal(t, ResultNotInitialized, sc.PutString("key", "v"))
	assert.Equal(t, "def", sc.GetString("key", "def"))
	assert.Equal(t, ResultNotInitialized, sc.LastResult())
	assert.False(t, sc.HasKey("key"))
}

func TestOneShotHelpers(t *testing.T) {
	s := newTestStore(t)

	assert.Equal(t, ResultOK, WriteString(s, "ns", "s", "v"))
	assert.Equal(t, "v", ReadString(s, "ns", "s", ""))

	assert.Equal(t, ResultOK, WriteUint(s, "ns", "u", 7))
	assert.Equal(t, uint32(7), ReadUint(s, "ns", "u", 0))

	assert.Equal(t, ResultOK, WriteBool(s, "ns", "b", true))
	assert.True(t, ReadBool(s, "ns", "b", false))

	// Reads against a namespace that was never written degrade to defaults.
	assert.Equal(t, "def", ReadString(s, "other", "s", "def"))
	assert.Equal(t, uint32(3), ReadUint(s, "other", "u", 3))
	assert.False(t, ReadBool(s, "other", "b", false))
}

func TestStoreFailureFailsOpen(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	// A dead storage engine degrades to an unopened scope, never a panic.
	sc := s.Scope("ns")
	assert.False(t, sc.IsOpen())
	assert.Equal(t, ResultNamespaceError, sc.LastResult())
	assert.Equal(t, "def", sc.GetString("key", "def"))
}
