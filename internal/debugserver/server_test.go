package debugserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/bootguard/internal/bootguard"
	"github.com/autopeer-io/bootguard/internal/platform"
	"github.com/autopeer-io/bootguard/pkg/log"
	"github.com/autopeer-io/bootguard/pkg/nvs"
	"github.com/autopeer-io/bootguard/pkg/options"
)

type staticParts struct {
	running platform.Partition
	table   []platform.Partition
}

func (s *staticParts) RunningPartition() (platform.Partition, error) { return s.running, nil }

func (s *staticParts) FindPartition(role platform.Role) (platform.Partition, bool) {
	for _, p := range s.table {
		if p.Role == role {
			return p, true
		}
	}
	return platform.Partition{}, false
}

func (s *staticParts) SetNextBoot(platform.Partition) error { return nil }

func (s *staticParts) NextBootPartition() (platform.Partition, error) { return s.running, nil }

func (s *staticParts) MarkImageValid() error { return nil }

func (s *staticParts) MarkImageInvalidAndReboot() error { return nil }

type noReboot struct{}

func (noReboot) Reboot() {}

func newTestServer(t *testing.T) (*Server, *bootguard.Validator) {
	t.Helper()

	store, err := nvs.OpenStoreWithLogger(filepath.Join(t.TempDir(), "nvs.db"), log.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	slotA := platform.Partition{Label: "slot_a", Role: platform.RoleSlotA}
	parts := &staticParts{
		running: slotA,
		table: []platform.Partition{
			slotA,
			{Label: "slot_b", Role: platform.RoleSlotB},
			{Label: "factory", Role: platform.RoleFactory},
		},
	}

	v, err := bootguard.New(bootguard.Config{
		Store:      store,
		Partitions: parts,
		Rebooter:   noReboot{},
		Logger:     log.NewNopLogger(),
	})
	require.NoError(t, err)
	require.True(t, v.Begin())

	return NewServer(options.NewHttpOptions(), v, parts), v
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestBootState(t *testing.T) {
	srv, v := newTestServer(t)
	v.StorePartitionVersion("2.4.1")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bootstate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var state BootState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, uint32(1), state.BootCount)
	assert.False(t, state.FactoryPartition)
	assert.Equal(t, "slot_a", state.RunningPartition)
	assert.Equal(t, "2.4.1", state.RunningVersion)
	assert.NotEmpty(t, state.State)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bootguard_boot_count")
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bootstate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
