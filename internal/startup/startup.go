package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pelletier/go-toml/v2"

	"media-optimizer/internal/convert"
	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"
	"media-optimizer/internal/sizes"
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

// Config holds all application configuration
type Config struct {
	MediaDir    string
	CacheDir    string
	DatabaseDir string
	BaseURL     string
	Port        string
	MetricsPort string

	MetricsEnabled  bool
	RenderMissing   bool
	LogHealthChecks bool

	Options     convert.Options
	Sizes       map[string]sizes.Dimension
	Workers     int
	QueueBuffer int
	FFmpegPath  string

	// Derived paths
	DatabasePath string
	VariantDir   string

	// Variant output is disabled when the cache directory cannot be
	// written; selection still serves whatever the store already holds.
	ConversionEnabled bool
}

// fileConfig mirrors Config for the optional TOML overlay. Every field
// is a pointer so that an absent key leaves the default untouched.
type fileConfig struct {
	MediaDir    *string `toml:"media_dir"`
	CacheDir    *string `toml:"cache_dir"`
	DatabaseDir *string `toml:"database_dir"`
	BaseURL     *string `toml:"base_url"`
	Port        *string `toml:"port"`
	MetricsPort *string `toml:"metrics_port"`

	MetricsEnabled  *bool `toml:"metrics_enabled"`
	RenderMissing   *bool `toml:"render_missing"`
	LogHealthChecks *bool `toml:"log_health_checks"`

	ImageFormats *string `toml:"image_formats"`
	VideoFormats *string `toml:"video_formats"`
	WebPQuality  *int    `toml:"webp_quality"`
	AVIFQuality  *int    `toml:"avif_quality"`
	AVIFSpeed    *int    `toml:"avif_speed"`
	AV1CRF       *int    `toml:"av1_crf"`
	WebMCRF      *int    `toml:"webm_crf"`
	VideoCPUUsed *int    `toml:"video_cpu_used"`

	Workers     *int    `toml:"workers"`
	QueueBuffer *int    `toml:"queue_buffer"`
	FFmpegPath  *string `toml:"ffmpeg_path"`

	Sizes map[string]string `toml:"sizes"`
}

// LoadConfig loads configuration in three layers: built-in defaults, an
// optional TOML file named by CONFIG_FILE, and environment variables on
// top.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	defaults := convert.DefaultOptions()

	// Layer 1: defaults (string form, so file and env layers compose).
	mediaDir := "/media"
	cacheDir := "/cache"
	databaseDir := "/database"
	baseURL := ""
	port := "8080"
	metricsPort := "9090"
	metricsEnabled := true
	renderMissing := false
	logHealthChecks := true
	imageFormats := joinFormats(defaults.ImageFormats)
	videoFormats := joinFormats(defaults.VideoFormats)
	webpQuality := defaults.WebPQuality
	avifQuality := defaults.AVIFQuality
	avifSpeed := defaults.AVIFSpeed
	av1CRF := defaults.AV1CRF
	webmCRF := defaults.WebMCRF
	videoCPUUsed := defaults.VideoCPUUsed
	workers := 0
	queueBuffer := 64
	ffmpegPath := ""
	sizeSpecs := map[string]string{}

	// Layer 2: optional TOML file.
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := loadFileConfig(path)
		if err != nil {
			return nil, err
		}
		logging.Info("  Loaded configuration file: %s", path)
		applyString(fc.MediaDir, &mediaDir)
		applyString(fc.CacheDir, &cacheDir)
		applyString(fc.DatabaseDir, &databaseDir)
		applyString(fc.BaseURL, &baseURL)
		applyString(fc.Port, &port)
		applyString(fc.MetricsPort, &metricsPort)
		applyBool(fc.MetricsEnabled, &metricsEnabled)
		applyBool(fc.RenderMissing, &renderMissing)
		applyBool(fc.LogHealthChecks, &logHealthChecks)
		applyString(fc.ImageFormats, &imageFormats)
		applyString(fc.VideoFormats, &videoFormats)
		applyInt(fc.WebPQuality, &webpQuality)
		applyInt(fc.AVIFQuality, &avifQuality)
		applyInt(fc.AVIFSpeed, &avifSpeed)
		applyInt(fc.AV1CRF, &av1CRF)
		applyInt(fc.WebMCRF, &webmCRF)
		applyInt(fc.VideoCPUUsed, &videoCPUUsed)
		applyInt(fc.Workers, &workers)
		applyInt(fc.QueueBuffer, &queueBuffer)
		applyString(fc.FFmpegPath, &ffmpegPath)
		for name, spec := range fc.Sizes {
			sizeSpecs[name] = spec
		}
	}

	// Layer 3: environment.
	mediaDir = getEnv("MEDIA_DIR", mediaDir)
	cacheDir = getEnv("CACHE_DIR", cacheDir)
	databaseDir = getEnv("DATABASE_DIR", databaseDir)
	baseURL = getEnv("BASE_URL", baseURL)
	port = getEnv("PORT", port)
	metricsPort = getEnv("METRICS_PORT", metricsPort)
	metricsEnabled = getEnvBool("METRICS_ENABLED", metricsEnabled)
	renderMissing = getEnvBool("RENDER_MISSING", renderMissing)
	logHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", logHealthChecks)
	imageFormats = getEnv("IMAGE_FORMATS", imageFormats)
	videoFormats = getEnv("VIDEO_FORMATS", videoFormats)
	webpQuality = getEnvInt("WEBP_QUALITY", webpQuality)
	avifQuality = getEnvInt("AVIF_QUALITY", avifQuality)
	avifSpeed = getEnvInt("AVIF_SPEED", avifSpeed)
	av1CRF = getEnvInt("AV1_CRF", av1CRF)
	webmCRF = getEnvInt("WEBM_CRF", webmCRF)
	videoCPUUsed = getEnvInt("VIDEO_CPU_USED", videoCPUUsed)
	workers = getEnvInt("WORKERS", workers)
	queueBuffer = getEnvInt("QUEUE_BUFFER", queueBuffer)
	ffmpegPath = getEnv("FFMPEG_PATH", ffmpegPath)
	if envSizes := os.Getenv("SIZES"); envSizes != "" {
		parsed, err := parseSizeSpecs(envSizes)
		if err != nil {
			return nil, fmt.Errorf("invalid SIZES: %w", err)
		}
		sizeSpecs = parsed
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  MEDIA_DIR:       %s", mediaDir)
	logging.Info("  CACHE_DIR:       %s", cacheDir)
	logging.Info("  DATABASE_DIR:    %s", databaseDir)
	logging.Info("  BASE_URL:        %s", valueOrNone(baseURL))
	logging.Info("  PORT:            %s", port)
	logging.Info("  METRICS_PORT:    %s", metricsPort)
	logging.Info("  METRICS_ENABLED: %v", metricsEnabled)
	logging.Info("  IMAGE_FORMATS:   %s", imageFormats)
	logging.Info("  VIDEO_FORMATS:   %s", videoFormats)
	logging.Info("  RENDER_MISSING:  %v", renderMissing)
	logging.Info("  LOG_LEVEL:       %s", logging.GetLevel())

	imgFormats, err := formats.ParseList(imageFormats, formats.KindImage)
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_FORMATS: %w", err)
	}
	vidFormats, err := formats.ParseList(videoFormats, formats.KindVideo)
	if err != nil {
		return nil, fmt.Errorf("invalid VIDEO_FORMATS: %w", err)
	}

	registry, err := buildSizeRegistry(sizeSpecs)
	if err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	mediaDir, err = filepath.Abs(mediaDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
	}
	cacheDir, err = filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	databaseDir, err = filepath.Abs(databaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}

	if err := ensureDirectory(mediaDir, "media"); err != nil {
		logging.Warn("  Media directory issue: %v", err)
	}
	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config := &Config{
		MediaDir:        mediaDir,
		CacheDir:        cacheDir,
		DatabaseDir:     databaseDir,
		BaseURL:         baseURL,
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		RenderMissing:   renderMissing,
		LogHealthChecks: logHealthChecks,
		Options: convert.Options{
			ImageFormats: imgFormats,
			VideoFormats: vidFormats,
			WebPQuality:  webpQuality,
			AVIFQuality:  avifQuality,
			AVIFSpeed:    avifSpeed,
			AV1CRF:       av1CRF,
			WebMCRF:      webmCRF,
			VideoCPUUsed: videoCPUUsed,
		},
		Sizes:        registry,
		Workers:      workers,
		QueueBuffer:  queueBuffer,
		FFmpegPath:   ffmpegPath,
		DatabasePath: filepath.Join(databaseDir, "variants.db"),
		VariantDir:   filepath.Join(cacheDir, "variants"),
	}

	config.ConversionEnabled = setupOptionalDir(config.VariantDir, "variants")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Variant store: ENABLED (required)")
	logging.Info("    Conversion:    %s", enabledString(config.ConversionEnabled))
	logging.Info("    Metrics:       %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func loadFileConfig(path string) (*fileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var fc fileConfig
	if err := toml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return &fc, nil
}

// buildSizeRegistry turns "name=WxH" specs into a static registry.
func buildSizeRegistry(specs map[string]string) (map[string]sizes.Dimension, error) {
	registry := make(map[string]sizes.Dimension, len(specs))
	for name, spec := range specs {
		dim, ok := sizes.ParseToken(spec)
		if !ok {
			return nil, fmt.Errorf("invalid size %q: want WxH, got %q", name, spec)
		}
		registry[name] = dim
	}
	return registry, nil
}

// parseSizeSpecs parses the SIZES environment form
// "thumbnail=300x200,medium=800x600".
func parseSizeSpecs(s string) (map[string]string, error) {
	specs := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, spec, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid size entry %q: want name=WxH", entry)
		}
		specs[strings.TrimSpace(name)] = strings.TrimSpace(spec)
	}
	return specs, nil
}

func joinFormats(fs []formats.Format) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func applyString(src *string, dst *string) {
	if src != nil {
		*dst = *src
	}
}

func applyBool(src *bool, dst *bool) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(src *int, dst *int) {
	if src != nil {
		*dst = *src
	}
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	testFile := filepath.Join(path, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("    failed to remove test file %s: %v", testFile, err)
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogStoreInit logs variant store initialization
func LogStoreInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("VARIANT STORE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Store initialized in %v", duration)
}

// LogEncoderInit logs the capability probe summary
func LogEncoderInit(available map[string][]string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENCODER CAPABILITIES")
	logging.Info("------------------------------------------------------------")

	names := make([]string, 0, len(available))
	for name := range available {
		names = append(names, name)
	}
	sort.Strings(names)

	anyUsable := false
	for _, name := range names {
		supported := available[name]
		if len(supported) == 0 {
			logging.Warn("  %s: NOT AVAILABLE", name)
			continue
		}
		anyUsable = true
		logging.Info("  [OK] %s: %s", name, strings.Join(supported, ", "))
	}
	if !anyUsable {
		logging.Warn("  No encoder is usable; conversion passes will produce nothing")
	}
}

// LogQueueInit logs conversion queue startup
func LogQueueInit(workers, buffer int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CONVERSION QUEUE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Workers: %d, buffer: %d", workers, buffer)
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
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
			// Route might not have methods specified
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router) {
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
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:  %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:     http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics: http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics: DISABLED")
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

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___         ____        __  _           _
   /  |/  /__  ____/ (_)___ _  / __ \____  / /_(_)___ ___  (_)___  ___  _____
  / /|_/ / _ \/ __  / / __ '/ / / / / __ \/ __/ / __ '__ \/ /_  / / _ \/ ___/
 / /  / /  __/ /_/ / / /_/ / / /_/ / /_/ / /_/ / / / / / / / / /_/  __/ /
/_/  /_/\___/\__,_/_/\__,_/  \____/ .___/\__/_/_/ /_/ /_/_/ /___/\___/_/
                                 /_/
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

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
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
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
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
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
