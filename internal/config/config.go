package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Camera struct {
		DeviceID       int
		SampleInterval time.Duration
	}
	Models struct {
		OnnxLibrary string // ONNX Runtime shared library, empty for platform default
		Cascade     string
		SCRFD       string
		FaceMesh    string
		ArcFace     string
	}
	Detection struct {
		InputSize     int
		ConfThreshold float64
		NMSThreshold  float64
	}
	ReferenceDir string
	Logging      struct {
		Level string
		File  string // empty disables the rotating file writer
	}
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	cfg := &Config{}

	cfg.Camera.DeviceID = getEnvInt("PROCTOR_CAMERA_ID", 0)
	cfg.Camera.SampleInterval = time.Duration(getEnvInt("PROCTOR_SAMPLE_INTERVAL_MS", 1000)) * time.Millisecond

	cfg.Models.OnnxLibrary = getEnv("PROCTOR_ONNXRUNTIME_LIB", "")
	cfg.Models.Cascade = getEnv("PROCTOR_CASCADE_FILE", "models/haarcascade_frontalface_default.xml")
	cfg.Models.SCRFD = getEnv("PROCTOR_SCRFD_MODEL", "models/scrfd_10g.onnx")
	cfg.Models.FaceMesh = getEnv("PROCTOR_FACEMESH_MODEL", "models/face_mesh.onnx")
	cfg.Models.ArcFace = getEnv("PROCTOR_ARCFACE_MODEL", "models/arcface.onnx")

	cfg.Detection.InputSize = getEnvInt("PROCTOR_DETECTION_SIZE", 640)
	cfg.Detection.ConfThreshold = getEnvFloat("PROCTOR_CONF_THRESHOLD", 0.5)
	cfg.Detection.NMSThreshold = getEnvFloat("PROCTOR_NMS_THRESHOLD", 0.4)

	cfg.ReferenceDir = getEnv("PROCTOR_REFERENCE_DIR", "reference_faces")

	cfg.Logging.Level = getEnv("PROCTOR_LOG_LEVEL", "info")
	cfg.Logging.File = getEnv("PROCTOR_LOG_FILE", "")

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
