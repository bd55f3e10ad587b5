package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

// isolateEnv clears every variable LoadConfig reads and points the ledger and
// scratch space into a temp dir.
func isolateEnv(t *testing.T) string {
	t.Helper()

	for _, key := range []string{
		"ENV_FILE", "PORT", "METRICS_PORT", "METRICS_ENABLED", "SCRATCH_DIR",
		"YTDLP_PATH", "FFMPEG_PATH", "MAX_MP3_SIZE_MB", "MAX_MP4_SIZE_MB",
		"EXTRACTOR_RETRIES", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "LOG_HEALTH_CHECKS", "TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	t.Setenv("DB_DSN", filepath.Join(dir, "data", "downloads.db"))
	return dir
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := isolateEnv(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Port != "8080" || config.MetricsPort != "9090" {
		t.Errorf("ports = %s/%s, want 8080/9090", config.Port, config.MetricsPort)
	}
	if !config.MetricsEnabled || !config.LogHealthChecks {
		t.Error("metrics and health check logging should default to enabled")
	}
	if config.MaxAudioBytes != 100*1024*1024 {
		t.Errorf("MaxAudioBytes = %d, want 100 MiB", config.MaxAudioBytes)
	}
	if config.MaxVideoBytes != 500*1024*1024 {
		t.Errorf("MaxVideoBytes = %d, want 500 MiB", config.MaxVideoBytes)
	}
	if config.ExtractorRetries != 10 {
		t.Errorf("ExtractorRetries = %d, want 10", config.ExtractorRetries)
	}
	if config.RateLimitRPS != 0 || config.RateLimitBurst != 10 {
		t.Errorf("rate limit = %v/%d, want 0/10", config.RateLimitRPS, config.RateLimitBurst)
	}
	if config.YtDlpPath != "" || config.FFmpegPath != "" {
		t.Error("binary paths should default to PATH lookup")
	}
	if !filepath.IsAbs(config.ScratchDir) {
		t.Errorf("ScratchDir %q should be absolute", config.ScratchDir)
	}

	if info, err := os.Stat(filepath.Join(dir, "data")); err != nil || !info.IsDir() {
		t.Errorf("database directory was not created: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	dir := isolateEnv(t)
	scratch := filepath.Join(dir, "scratch")

	t.Setenv("PORT", "3000")
	t.Setenv("SCRATCH_DIR", scratch)
	t.Setenv("MAX_MP3_SIZE_MB", "5")
	t.Setenv("MAX_MP4_SIZE_MB", "50")
	t.Setenv("EXTRACTOR_RETRIES", "3")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("RATE_LIMIT_BURST", "2")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("YTDLP_PATH", "/opt/bin/yt-dlp")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Port != "3000" {
		t.Errorf("Port = %s, want 3000", config.Port)
	}
	if config.ScratchDir != scratch {
		t.Errorf("ScratchDir = %s, want %s", config.ScratchDir, scratch)
	}
	if config.MaxAudioBytes != 5*1024*1024 || config.MaxVideoBytes != 50*1024*1024 {
		t.Errorf("size limits = %d/%d", config.MaxAudioBytes, config.MaxVideoBytes)
	}
	if config.ExtractorRetries != 3 {
		t.Errorf("ExtractorRetries = %d, want 3", config.ExtractorRetries)
	}
	if config.RateLimitRPS != 0.5 || config.RateLimitBurst != 2 {
		t.Errorf("rate limit = %v/%d, want 0.5/2", config.RateLimitRPS, config.RateLimitBurst)
	}
	if config.MetricsEnabled {
		t.Error("MetricsEnabled should be false")
	}
	if config.YtDlpPath != "/opt/bin/yt-dlp" {
		t.Errorf("YtDlpPath = %s", config.YtDlpPath)
	}
	if _, err := os.Stat(scratch); err != nil {
		t.Errorf("scratch directory was not created: %v", err)
	}
}

func TestLoadConfigEnvFile(t *testing.T) {
	dir := isolateEnv(t)

	envFile := filepath.Join(dir, "porter.env")
	content := "PORT=4000\nMAX_MP3_SIZE_MB=7\nMETRICS_PORT=9999\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", envFile)
	// Already-set variables win over the file.
	t.Setenv("METRICS_PORT", "9191")

	// godotenv skips variables that exist, even empty ones. isolateEnv
	// registered restores for both.
	os.Unsetenv("PORT")
	os.Unsetenv("MAX_MP3_SIZE_MB")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Port != "4000" {
		t.Errorf("Port = %s, want 4000 from env file", config.Port)
	}
	if config.MaxAudioBytes != 7*1024*1024 {
		t.Errorf("MaxAudioBytes = %d, want 7 MiB", config.MaxAudioBytes)
	}
	if config.MetricsPort != "9191" {
		t.Errorf("MetricsPort = %s, want environment value 9191", config.MetricsPort)
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := parseTrustedProxies(" 10.0.0.0/8, 192.0.2.7 ,, ::1, 172.16.5.9/12")
	if err != nil {
		t.Fatalf("parseTrustedProxies() error = %v", err)
	}

	want := []string{"10.0.0.0/8", "192.0.2.7/32", "::1/128", "172.16.0.0/12"}
	if len(got) != len(want) {
		t.Fatalf("parseTrustedProxies() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("prefix %d = %s, want %s", i, got[i], want[i])
		}
	}

	if got, err := parseTrustedProxies(""); err != nil || len(got) != 0 {
		t.Errorf("parseTrustedProxies(\"\") = %v, %v; want none", got, err)
	}
	if _, err := parseTrustedProxies("10.0.0.0/33"); err == nil {
		t.Error("parseTrustedProxies() should reject an invalid prefix")
	}
}

func TestMegabytes(t *testing.T) {
	tests := []struct {
		value string
		want  int64
	}{
		{"", 100 * 1024 * 1024},
		{"1", 1024 * 1024},
		{"8796093022207", 8796093022207 * 1024 * 1024},
		{"8796093022208", -1},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("MAX_MP3_SIZE_MB", tt.value)
			if got := megabytes("MAX_MP3_SIZE_MB", 100*1024*1024); got != tt.want {
				t.Errorf("megabytes(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestLoadEnv(t *testing.T) {
	dir := isolateEnv(t)

	envFile := filepath.Join(dir, "porter.env")
	if err := os.WriteFile(envFile, []byte("MEMORY_LIMIT=1073741824\nLOG_LEVEL=error\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ENV_FILE", envFile)
	t.Setenv("MEMORY_LIMIT", "")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("MEMORY_LIMIT")
	os.Unsetenv("LOG_LEVEL")

	used, err := LoadEnv()
	if err != nil {
		t.Fatalf("LoadEnv() error = %v", err)
	}
	if used != envFile {
		t.Errorf("LoadEnv() = %q, want %q", used, envFile)
	}
	if got := os.Getenv("MEMORY_LIMIT"); got != "1073741824" {
		t.Errorf("MEMORY_LIMIT = %q after LoadEnv", got)
	}
	if got := os.Getenv("LOG_LEVEL"); got != "error" {
		t.Errorf("LOG_LEVEL = %q after LoadEnv", got)
	}
}

func TestLoadEnvNoFile(t *testing.T) {
	isolateEnv(t)
	t.Chdir(t.TempDir())

	used, err := LoadEnv()
	if err != nil || used != "" {
		t.Errorf("LoadEnv() = %q, %v; want no file and no error", used, err)
	}
}

func TestLoadConfigMissingEnvFile(t *testing.T) {
	dir := isolateEnv(t)
	t.Setenv("ENV_FILE", filepath.Join(dir, "missing.env"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error for missing ENV_FILE")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		want  string
	}{
		{"zero audio ceiling", "MAX_MP3_SIZE_MB", "0", "MAX_MP3_SIZE_MB"},
		{"negative video ceiling", "MAX_MP4_SIZE_MB", "-1", "MAX_MP4_SIZE_MB"},
		{"audio ceiling overflows int64", "MAX_MP3_SIZE_MB", "8796093022208", "MAX_MP3_SIZE_MB"},
		{"video ceiling overflows int64", "MAX_MP4_SIZE_MB", "9223372036854775807", "MAX_MP4_SIZE_MB"},
		{"negative retries", "EXTRACTOR_RETRIES", "-2", "EXTRACTOR_RETRIES"},
		{"negative rate", "RATE_LIMIT_RPS", "-1", "RATE_LIMIT_RPS"},
		{"bad trusted proxy", "TRUSTED_PROXIES", "10.0.0.0/8, proxy.local", "TRUSTED_PROXIES"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := LoadConfig()
			if err == nil {
				t.Fatalf("Expected error for %s=%s", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %s", err, tt.want)
			}
		})
	}
}

func TestLoadConfigUnwritableDatabasePath(t *testing.T) {
	dir := isolateEnv(t)

	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DB_DSN", filepath.Join(blocker, "downloads.db"))

	if _, err := LoadConfig(); err == nil {
		t.Fatal("Expected error when the database directory is a file")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_STARTUP_SET", "custom")
	t.Setenv("TEST_STARTUP_EMPTY", "")

	if got := getEnv("TEST_STARTUP_SET", "default"); got != "custom" {
		t.Errorf("getEnv() = %q, want custom", got)
	}
	if got := getEnv("TEST_STARTUP_EMPTY", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want default for empty value", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"false", true, false},
		{"0", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Setenv("TEST_STARTUP_BOOL", tt.value)
		if got := getEnvBool("TEST_STARTUP_BOOL", tt.defaultValue); got != tt.want {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
		}
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 10},
		{"42", 42},
		{" 7 ", 7},
		{"-3", -3},
		{"ten", 10},
		{"1.5", 10},
	}

	for _, tt := range tests {
		t.Setenv("TEST_STARTUP_INT", tt.value)
		if got := getEnvInt("TEST_STARTUP_INT", 10); got != tt.want {
			t.Errorf("getEnvInt(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		value string
		want  float64
	}{
		{"", 1},
		{"0.25", 0.25},
		{"3", 3},
		{"fast", 1},
	}

	for _, tt := range tests {
		t.Setenv("TEST_STARTUP_FLOAT", tt.value)
		if got := getEnvFloat("TEST_STARTUP_FLOAT", 1); got != tt.want {
			t.Errorf("getEnvFloat(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetRoutes(t *testing.T) {
	noop := func(http.ResponseWriter, *http.Request) {}

	r := mux.NewRouter()
	r.HandleFunc("/{platform}/{format}/download", noop).Methods(http.MethodGet).Name("download")
	r.HandleFunc("/healthz", noop).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/version", noop)

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	want := []RouteInfo{
		{Method: "GET", Path: "/{platform}/{format}/download", Name: "download"},
		{Method: "GET", Path: "/healthz"},
		{Method: "HEAD", Path: "/healthz"},
		{Method: "*", Path: "/version"},
	}
	if len(routes) != len(want) {
		t.Fatalf("GetRoutes() returned %d routes, want %d: %+v", len(routes), len(want), routes)
	}
	for i := range want {
		if routes[i] != want[i] {
			t.Errorf("route %d = %+v, want %+v", i, routes[i], want[i])
		}
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/{platform}/{format}/download": "downloads",
		"/healthz":                      "health",
		"/readyz":                       "health",
		"/version":                      "version",
		"/":                             "root",
	}

	for path, want := range tests {
		if got := getRouteGroup(path); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestCheckToolMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	if _, err := checkTool("", "yt-dlp-definitely-missing", "--version"); err == nil {
		t.Error("Expected error for a binary that is not in PATH")
	}
	if _, err := checkTool(filepath.Join(t.TempDir(), "nope"), "ffmpeg", "-version"); err == nil {
		t.Error("Expected error for a nonexistent explicit path")
	}
}

func TestTestWriteAccess(t *testing.T) {
	dir := t.TempDir()
	if err := testWriteAccess(dir); err != nil {
		t.Fatalf("testWriteAccess() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("write test left %d files behind", len(entries))
	}
}
