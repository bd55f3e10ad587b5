package startup

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/netip"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-porter/internal/logging"
	"media-porter/internal/mediatypes"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogHealthChecks bool

	DatabasePath string
	ScratchDir   string

	// Empty paths mean PATH lookup.
	YtDlpPath  string
	FFmpegPath string

	MaxAudioBytes    int64
	MaxVideoBytes    int64
	ExtractorRetries int

	RateLimitRPS   float64
	RateLimitBurst int
	// TrustedProxies are the peers allowed to set X-Forwarded-For for rate limiting.
	TrustedProxies []netip.Prefix
}

const (
	defaultEnvFile      = ".env"
	defaultDatabasePath = "./data/downloads.db"
	bytesPerMB          = 1024 * 1024
	maxSizeMB           = math.MaxInt64 / bytesPerMB
)

// LoadConfig loads and validates configuration from environment variables,
// seeding the environment from a .env file first when one exists.
func LoadConfig() (*Config, error) {
	envFile, err := LoadEnv()
	if err != nil {
		return nil, err
	}

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	if envFile != "" {
		logging.Info("  Loaded environment from %s", envFile)
	}

	config := &Config{
		Port:             getEnv("PORT", "8080"),
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:  getEnvBool("LOG_HEALTH_CHECKS", true),
		DatabasePath:     getEnv("DB_DSN", defaultDatabasePath),
		ScratchDir:       getEnv("SCRATCH_DIR", os.TempDir()),
		YtDlpPath:        getEnv("YTDLP_PATH", ""),
		FFmpegPath:       getEnv("FFMPEG_PATH", ""),
		MaxAudioBytes:    megabytes("MAX_MP3_SIZE_MB", mediatypes.DefaultMaxAudioBytes),
		MaxVideoBytes:    megabytes("MAX_MP4_SIZE_MB", mediatypes.DefaultMaxVideoBytes),
		ExtractorRetries: getEnvInt("EXTRACTOR_RETRIES", 10),
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 10),
	}

	trusted, trustedErr := parseTrustedProxies(getEnv("TRUSTED_PROXIES", ""))
	config.TrustedProxies = trusted

	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  DB_DSN:              %s", config.DatabasePath)
	logging.Info("  SCRATCH_DIR:         %s", config.ScratchDir)
	logging.Info("  YTDLP_PATH:          %s", orPathLookup(config.YtDlpPath))
	logging.Info("  FFMPEG_PATH:         %s", orPathLookup(config.FFmpegPath))
	logging.Info("  MAX_MP3_SIZE_MB:     %s", mediatypes.FormatBytes(config.MaxAudioBytes))
	logging.Info("  MAX_MP4_SIZE_MB:     %s", mediatypes.FormatBytes(config.MaxVideoBytes))
	logging.Info("  EXTRACTOR_RETRIES:   %d", config.ExtractorRetries)
	logging.Info("  RATE_LIMIT_RPS:      %v", config.RateLimitRPS)
	logging.Info("  RATE_LIMIT_BURST:    %d", config.RateLimitBurst)
	logging.Info("  TRUSTED_PROXIES:     %v", config.TrustedProxies)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if err := errors.Join(config.validate(), trustedErr); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	config.DatabasePath, err = filepath.Abs(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	logging.Info("  Database file (absolute): %s", config.DatabasePath)

	config.ScratchDir, err = filepath.Abs(config.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch directory path: %w", err)
	}
	logging.Info("  Scratch directory (absolute): %s", config.ScratchDir)

	databaseDir := filepath.Dir(config.DatabasePath)
	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for the download ledger): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	if err := ensureDirectory(config.ScratchDir, "scratch"); err != nil {
		return nil, fmt.Errorf("scratch directory error: %w", err)
	}
	if err := testWriteAccess(config.ScratchDir); err != nil {
		return nil, fmt.Errorf("scratch directory is not writable (required for downloads): %w", err)
	}
	logging.Info("  [OK] Scratch directory is writable")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Ledger:        ENABLED (required)")
	logging.Info("    Rate limiting: %s", enabledString(config.RateLimitRPS > 0))
	logging.Info("    Metrics:       %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.MaxAudioBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_MP3_SIZE_MB must be between 1 and %d", maxSizeMB))
	}
	if c.MaxVideoBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_MP4_SIZE_MB must be between 1 and %d", maxSizeMB))
	}
	if c.ExtractorRetries < 1 {
		errs = append(errs, errors.New("EXTRACTOR_RETRIES must be at least 1"))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled"))
	}
	return errors.Join(errs...)
}

// LoadEnv seeds the environment from ENV_FILE, or from ./.env when present,
// and returns the file it used. Variables already set in the environment win,
// so calling it again is harmless. It does not log; main calls it before
// anything else reads LOG_LEVEL or MEMORY_LIMIT.
func LoadEnv() (string, error) {
	if path := os.Getenv("ENV_FILE"); path != "" {
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("failed to load ENV_FILE %s: %w", path, err)
		}
		return path, nil
	}

	if _, err := os.Stat(defaultEnvFile); err != nil {
		return "", nil
	}
	if err := godotenv.Load(defaultEnvFile); err != nil {
		return "", fmt.Errorf("failed to load %s: %w", defaultEnvFile, err)
	}
	return defaultEnvFile, nil
}

func orPathLookup(path string) string {
	if path == "" {
		return "(PATH lookup)"
	}
	return path
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogExtractorInit checks the yt-dlp and FFmpeg binaries the extractor runs.
// Missing binaries are warnings: the service starts and downloads fail with 500.
func LogExtractorInit(config *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("EXTRACTOR INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if version, err := checkTool(config.YtDlpPath, "yt-dlp", "--version"); err != nil {
		logging.Warn("  yt-dlp check failed: %v", err)
		logging.Warn("  Downloads will fail until yt-dlp is installed")
	} else {
		logging.Info("  [OK] yt-dlp is available (%s)", version)
	}

	if version, err := checkTool(config.FFmpegPath, "ffmpeg", "-version"); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  MP3 extraction and MP4 merging may not work correctly")
	} else {
		logging.Info("  [OK] FFmpeg is available (%s)", version)
	}
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			group := getRouteGroup(route.Path)
			groups[group] = append(groups[group], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			logging.Debug("  [%s]", group)
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup names the group a route is listed under. Templated first
// segments such as {platform} form the download group.
func getRouteGroup(path string) string {
	first, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	switch {
	case first == "":
		return "root"
	case strings.HasPrefix(first, "{"):
		return "downloads"
	case healthRoutes[first]:
		return "health"
	default:
		return first
	}
}

var healthRoutes = map[string]bool{
	"health":  true,
	"healthz": true,
	"livez":   true,
	"readyz":  true,
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	logging.Info("    Download:      http://localhost:%s/{youtube|tiktok|instagram}/{mp3|mp4}/download?url=...", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	banner := `
------------------------------------------------------------
                     _ _                            _
  _ __ ___   ___  __| (_) __ _       _ __   ___  _ __| |_ ___ _ __
 | '_ ' _ \ / _ \/ _' | |/ _' |_____| '_ \ / _ \| '__| __/ _ \ '__|
 | | | | | |  __/ (_| | | (_| |_____| |_) | (_) | |  | ||  __/ |
 |_| |_| |_|\___|\__,_|_|\__,_|     | .__/ \___/|_|   \__\___|_|
                                    |_|
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		logging.Warn("failed to close write test file %s: %v", name, err)
	}
	if err := os.Remove(name); err != nil {
		logging.Warn("failed to remove write test file %s: %v", name, err)
	}
	return nil
}

// checkTool resolves a binary (explicit path, else PATH lookup of name) and
// returns the first line of its version output.
func checkTool(path, name, versionArg string) (string, error) {
	if path == "" {
		resolved, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("%s not found in PATH", name)
		}
		path = resolved
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, versionArg).Output()
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", name, err)
	}

	first, _, _ := strings.Cut(string(output), "\n")
	return strings.TrimSpace(first), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// parseTrustedProxies parses a comma-separated list of addresses and CIDR
// prefixes. A bare address becomes a single-host prefix.
func parseTrustedProxies(value string) ([]netip.Prefix, error) {
	var (
		prefixes []netip.Prefix
		errs     []error
	)
	for _, field := range strings.Split(value, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if strings.Contains(field, "/") {
			p, err := netip.ParsePrefix(field)
			if err != nil {
				errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
				continue
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(field)
		if err != nil {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
			continue
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, errors.Join(errs...)
}

// megabytes reads a size in MB and returns it in bytes. Values whose byte
// count would overflow int64 come back as -1 so validate rejects them.
func megabytes(key string, defaultBytes int64) int64 {
	mb := int64(getEnvInt(key, int(defaultBytes/bytesPerMB)))
	if mb > maxSizeMB {
		return -1
	}
	return mb * bytesPerMB
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
