package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errTest = errors.New("test error")

type mockStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

func (m *mockStatsProvider) GetStats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.stats, m.err
}

func (m *mockStatsProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNewCollector(t *testing.T) {
	provider := &mockStatsProvider{}
	collector := NewCollector(provider, "/tmp/test.db", 5*time.Second)

	if collector == nil {
		t.Fatal("NewCollector returned nil")
	}
	if collector.interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", collector.interval)
	}
	if collector.dbPath != "/tmp/test.db" {
		t.Errorf("dbPath = %q, want /tmp/test.db", collector.dbPath)
	}
	if collector.stopChan == nil {
		t.Error("stopChan not initialized")
	}
}

func TestCollectWithNilProvider(t *testing.T) {
	collector := NewCollector(nil, "", time.Second)

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("collect() panicked with nil provider: %v", r)
		}
	}()

	collector.collect()
}

func TestCollectUpdatesLedgerGauges(t *testing.T) {
	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &mockStatsProvider{
		stats: Stats{
			TotalDownloads: 7,
			TotalBytes:     4096,
			Counts: []DownloadCount{
				{Platform: "youtube", Format: "mp3", Downloads: 5},
				{Platform: "tiktok", Format: "mp4", Downloads: 2},
			},
			LastDownload: last,
		},
	}

	collector := NewCollector(provider, "", time.Second)
	collector.collect()

	if got := testutil.ToFloat64(LedgerDownloads.WithLabelValues("youtube", "mp3")); got != 5 {
		t.Errorf("LedgerDownloads{youtube,mp3} = %v, want 5", got)
	}
	if got := testutil.ToFloat64(LedgerDownloads.WithLabelValues("tiktok", "mp4")); got != 2 {
		t.Errorf("LedgerDownloads{tiktok,mp4} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(LedgerBytes); got != 4096 {
		t.Errorf("LedgerBytes = %v, want 4096", got)
	}
	if got := testutil.ToFloat64(LedgerLastDownloadTimestamp); got != float64(last.Unix()) {
		t.Errorf("LedgerLastDownloadTimestamp = %v, want %v", got, last.Unix())
	}
}

func TestCollectKeepsGaugesOnProviderError(t *testing.T) {
	LedgerBytes.Set(1234)

	provider := &mockStatsProvider{err: errTest, stats: Stats{TotalBytes: 1}}
	collector := NewCollector(provider, "", time.Second)
	collector.collect()

	if got := testutil.ToFloat64(LedgerBytes); got != 1234 {
		t.Errorf("LedgerBytes = %v, want unchanged 1234", got)
	}
}

func TestCollectDBSizeWithWALAndSHM(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	files := map[string]string{
		dbPath:          "main db",
		dbPath + "-wal": "wal file!",
		dbPath + "-shm": "shm",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to create %s: %v", path, err)
		}
	}

	collector := NewCollector(nil, dbPath, time.Second)
	collector.collectDBSize()

	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("main")); got != 7 {
		t.Errorf("main size = %v, want 7", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("wal")); got != 9 {
		t.Errorf("wal size = %v, want 9", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("shm")); got != 3 {
		t.Errorf("shm size = %v, want 3", got)
	}
}

func TestCollectDBSizeWithMissingDatabase(t *testing.T) {
	collector := NewCollector(nil, "/nonexistent/path/db.db", time.Second)
	collector.collectDBSize()

	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("main")); got != 0 {
		t.Errorf("main size = %v, want 0 for missing file", got)
	}
}

func TestCollectorStartStop(t *testing.T) {
	provider := &mockStatsProvider{}
	collector := NewCollector(provider, "", 10*time.Millisecond)

	collector.Start()

	deadline := time.Now().Add(2 * time.Second)
	for provider.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	collector.Stop()

	if provider.callCount() < 2 {
		t.Errorf("expected at least 2 collections, got %d", provider.callCount())
	}
}
