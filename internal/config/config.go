package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the server. Values come from the environment,
// optionally seeded from a .env file, with the defaults below.
type Config struct {
	Port         int
	CamerasPort  int
	Password     string
	CameraNames  map[string]string // camera IP -> display name
	LogDirectory string

	DatabasePath  string
	ProfileSource string // "yaml" or "sqlite"
	ProfilesPath  string
	ActiveProfile string

	FaceCascadePath string
	DNNModelPath    string
	DNNConfigPath   string

	StreamQueue int
	JPEGQuality int

	Detection DetectionConfig
	Tracker   TrackerConfig
	Text      TextConfig
	Blur      BlurConfig
	Stats     StatsConfig
}

// DetectionConfig tunes the detection coordinator.
type DetectionConfig struct {
	Timeout time.Duration
	Workers int
	NMSIOU  float64
}

// TrackerConfig holds the hysteresis policy of the region tracker.
type TrackerConfig struct {
	MatchIOU      float64
	Smoothing     float64
	ConfirmFrames int
	FadeMisses    int
	ExpiryMisses  int
}

// TextConfig tunes the OCR lane.
type TextConfig struct {
	Interval     int
	Backlog      int
	Workers      int
	Timeout      time.Duration
	HashDistance int
	AreaDelta    float64
	Patterns     bool
	Language     string
}

// BlurConfig tunes rendering.
type BlurConfig struct {
	FeatherPx     int
	PixelBlockMax int
	BlurSigmaMax  float64
	FillColor     string
}

// StatsConfig controls session checkpoints.
type StatsConfig struct {
	FlushInterval time.Duration
	FlushFrames   int
	FlushTimeout  time.Duration
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnvAsInt("PORT", 8080),
		CamerasPort:   getEnvAsInt("CAMERAS_PORT", 8081),
		Password:      getEnv("PASSWORD", "changeme"),
		CameraNames:   parseCameraNames(getEnv("CAMERA_NAMES", "")),
		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),
		DatabasePath:  getEnv("DB_PATH", filepath.Join(".", "data", "privacyblur.db")),
		ProfileSource: getEnv("PROFILE_SOURCE", "yaml"),
		ProfilesPath:  getEnv("PROFILES_PATH", filepath.Join(".", "configs", "profiles.yaml")),
		ActiveProfile: getEnv("ACTIVE_PROFILE", "Default Privacy"),

		FaceCascadePath: getEnv("FACE_CASCADE_PATH", filepath.Join(".", "models", "haarcascade_frontalface_default.xml")),
		DNNModelPath:    getEnv("DNN_MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		DNNConfigPath:   getEnv("DNN_CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),

		StreamQueue: getEnvAsInt("STREAM_QUEUE", 4),
		JPEGQuality: getEnvAsInt("JPEG_QUALITY", 80),

		Detection: DetectionConfig{
			Timeout: getEnvAsDuration("DETECTOR_TIMEOUT", 200*time.Millisecond),
			Workers: getEnvAsInt("DETECTOR_WORKERS", 5),
			NMSIOU:  getEnvAsFloat("NMS_IOU", 0.45),
		},
		Tracker: TrackerConfig{
			MatchIOU:      getEnvAsFloat("MATCH_IOU", 0.5),
			Smoothing:     getEnvAsFloat("SMOOTHING", 0.6),
			ConfirmFrames: getEnvAsInt("CONFIRM_FRAMES", 3),
			FadeMisses:    getEnvAsInt("FADE_MISSES", 2),
			ExpiryMisses:  getEnvAsInt("EXPIRY_MISSES", 10),
		},
		Text: TextConfig{
			Interval:     getEnvAsInt("TEXT_INTERVAL", 15),
			Backlog:      getEnvAsInt("TEXT_BACKLOG", 4),
			Workers:      getEnvAsInt("TEXT_WORKERS", 1),
			Timeout:      getEnvAsDuration("OCR_TIMEOUT", 2*time.Second),
			HashDistance: getEnvAsInt("HASH_DISTANCE", 10),
			AreaDelta:    getEnvAsFloat("AREA_DELTA", 0.25),
			Patterns:     getEnvAsBool("TEXT_PATTERNS", false),
			Language:     getEnv("OCR_LANGUAGE", "eng"),
		},
		Blur: BlurConfig{
			FeatherPx:     getEnvAsInt("FEATHER_PX", 6),
			PixelBlockMax: getEnvAsInt("PIXEL_BLOCK_MAX", 24),
			BlurSigmaMax:  getEnvAsFloat("BLUR_SIGMA_MAX", 12),
			FillColor:     getEnv("FILL_COLOR", "000000"),
		},
		Stats: StatsConfig{
			FlushInterval: getEnvAsDuration("STATS_FLUSH_INTERVAL", 30*time.Second),
			FlushFrames:   getEnvAsInt("STATS_FLUSH_FRAMES", 300),
			FlushTimeout:  getEnvAsDuration("STATS_FLUSH_TIMEOUT", 5*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("250ms") or plain seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// parseCameraNames parses "10.0.0.5=door,10.0.0.6=desk".
func parseCameraNames(value string) map[string]string {
	names := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		ip, name, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || ip == "" || name == "" {
			continue
		}
		names[strings.TrimSpace(ip)] = strings.TrimSpace(name)
	}
	return names
}
