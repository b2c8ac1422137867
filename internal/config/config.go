// Package config loads runtime settings from KYC_* environment variables.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds every runtime setting. Zero thresholds keep the gate defaults.
type Config struct {
	DataDir   string
	Addr      string
	StaticDir string

	CameraID int
	FPS      int

	Mode            string
	DocumentVariant string
	DocumentType    string

	PluginDir       string
	PluginTimeoutMs int

	CascadePath       string
	DetectorSocket    string
	DetectorTimeoutMs int

	Tray    bool
	Verbose bool

	Sharpness      float64
	MaxSkew        float64
	MinFaceQuality float64
	MaxMotion      float64
	RequireThumb   bool
}

// Load reads the environment, falling back to defaults.
func Load() *Config {
	dataDir := getEnv("KYC_DATA_DIR", defaultDataDir())

	return &Config{
		DataDir:   dataDir,
		Addr:      getEnv("KYC_ADDR", "127.0.0.1:8080"),
		StaticDir: getEnv("KYC_STATIC_DIR", ""),

		CameraID: getEnvInt("KYC_CAMERA_ID", 0),
		FPS:      getEnvInt("KYC_FPS", 10),

		Mode:            getEnv("KYC_MODE", ""),
		DocumentVariant: getEnv("KYC_DOCUMENT_VARIANT", "stream"),
		DocumentType:    getEnv("KYC_DOCUMENT_TYPE", "passport"),

		PluginDir:       getEnv("KYC_PLUGIN_DIR", filepath.Join(dataDir, "plugins")),
		PluginTimeoutMs: getEnvInt("KYC_PLUGIN_TIMEOUT_MS", 5000),

		CascadePath:       getEnv("KYC_CASCADE_PATH", ""),
		DetectorSocket:    getEnv("KYC_DETECTOR_SOCKET", ""),
		DetectorTimeoutMs: getEnvInt("KYC_DETECTOR_TIMEOUT_MS", 2000),

		Tray:    getEnvBool("KYC_TRAY", true),
		Verbose: getEnvBool("KYC_VERBOSE", false),

		Sharpness:      getEnvFloat("KYC_SHARPNESS", 0),
		MaxSkew:        getEnvFloat("KYC_MAX_SKEW", 0),
		MinFaceQuality: getEnvFloat("KYC_MIN_FACE_QUALITY", 0),
		MaxMotion:      getEnvFloat("KYC_MAX_MOTION", 0),
		RequireThumb:   getEnvBool("KYC_REQUIRE_THUMB", false),
	}
}

// DBPath is the sqlite file inside DataDir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "kyccapture.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kyccapture"
	}
	return filepath.Join(home, ".kyccapture")
}

func getEnv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", k, v, err)
		return def
	}
	return n
}

func getEnvFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", k, v, err)
		return def
	}
	return f
}

func getEnvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", k, v, err)
		return def
	}
	return b
}
