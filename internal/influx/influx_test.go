package influx

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/pkg/core"
)

func testConfig(host, port string) config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:  true,
		Host:     host,
		Port:     port,
		Protocol: "http",
		Token:    "token",
		Org:      "railsim",
		Bucket:   "formations",
	}
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.ErrorIs(t, m.Connect(context.Background()), ErrDisabled)
}

func TestConnect_UnreachableUsesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "influx_backup.log.gz")
	m := NewManager(testConfig("127.0.0.1", "1"), zerolog.Nop(), path)

	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.Valid())

	at := time.Unix(100, 0)
	require.NoError(t, m.WritePoint(StatusPoint(2, 5, 40, 1, 0, 3, 2*time.Millisecond, at)))
	require.NoError(t, m.WritePoint(FormationPoint(core.FormationRecord{ID: 7, Size: 3, Direction: core.Reverse}, 1.5, at)))
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "sim_status "))
	assert.NotContains(t, lines[0], "sim_status,", "an untagged point has no tag separator")
	assert.Regexp(t, `^sim_status [a-zA-Z]+=[^ ]+ 100000000000$`, lines[0])
	assert.Contains(t, lines[0], "formations=2i")
	assert.Contains(t, lines[0], "observers=3i")
	assert.True(t, strings.HasPrefix(lines[1], "formation,formation=7 "))
	assert.Contains(t, lines[1], "direction=1i")
}

func TestConnect_UnreachableWithoutBackupPath(t *testing.T) {
	m := NewManager(testConfig("127.0.0.1", "1"), zerolog.Nop(), "")
	assert.Error(t, m.Connect(context.Background()))
	assert.Error(t, m.WritePoint(influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1)))
}

// fakeInflux answers the handful of v2 API calls the manager makes.
type fakeInflux struct {
	mu     sync.Mutex
	writes []string
}

func (f *fakeInflux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/ping", "/health":
		w.WriteHeader(http.StatusNoContent)
	case "/api/v2/orgs":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"orgs":[{"id":"0000000000000001","name":"railsim"}]}`)
	case "/api/v2/buckets":
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"buckets":[{"id":"0000000000000002","name":"formations","orgID":"0000000000000001","retentionRules":[]}]}`)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, r.URL.Query().Get("bucket")+"|"+string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeInflux) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func TestConnect_WritesToServer(t *testing.T) {
	fake := &fakeInflux{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	m := NewManager(testConfig(u.Hostname(), u.Port()), zerolog.Nop(), "")

	require.NoError(t, m.Connect(context.Background()))
	require.True(t, m.Valid())

	require.NoError(t, m.WritePoint(StatusPoint(1, 1, 1, 0, 0, 0, 0, time.Unix(5, 0))))
	require.NoError(t, m.Flush())

	require.Eventually(t, func() bool { return len(fake.received()) > 0 }, 2*time.Second, 10*time.Millisecond)
	got := fake.received()[0]
	assert.True(t, strings.HasPrefix(got, "formations|"))
	assert.Contains(t, got, "sim_status")
	require.NoError(t, m.Close())
}
