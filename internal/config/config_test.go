package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// clearEnv blanks every configuration variable so ambient values in the
// test process cannot leak into default assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PROCTOR_CAMERA_ID",
		"PROCTOR_SAMPLE_INTERVAL_MS",
		"PROCTOR_ONNXRUNTIME_LIB",
		"PROCTOR_CASCADE_FILE",
		"PROCTOR_SCRFD_MODEL",
		"PROCTOR_FACEMESH_MODEL",
		"PROCTOR_ARCFACE_MODEL",
		"PROCTOR_DETECTION_SIZE",
		"PROCTOR_CONF_THRESHOLD",
		"PROCTOR_NMS_THRESHOLD",
		"PROCTOR_REFERENCE_DIR",
		"PROCTOR_LOG_LEVEL",
		"PROCTOR_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	assert.Equal(t, 0, cfg.Camera.DeviceID)
	assert.Equal(t, time.Second, cfg.Camera.SampleInterval)
	assert.Equal(t, 640, cfg.Detection.InputSize)
	assert.Equal(t, 0.5, cfg.Detection.ConfThreshold)
	assert.Equal(t, 0.4, cfg.Detection.NMSThreshold)
	assert.Equal(t, "reference_faces", cfg.ReferenceDir)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROCTOR_CAMERA_ID", "2")
	t.Setenv("PROCTOR_SAMPLE_INTERVAL_MS", "250")
	t.Setenv("PROCTOR_CONF_THRESHOLD", "0.7")
	t.Setenv("PROCTOR_REFERENCE_DIR", "/var/lib/proctor/refs")

	cfg := Load()

	assert.Equal(t, 2, cfg.Camera.DeviceID)
	assert.Equal(t, 250*time.Millisecond, cfg.Camera.SampleInterval)
	assert.Equal(t, 0.7, cfg.Detection.ConfThreshold)
	assert.Equal(t, "/var/lib/proctor/refs", cfg.ReferenceDir)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROCTOR_CAMERA_ID", "not-a-number")
	t.Setenv("PROCTOR_NMS_THRESHOLD", "high")

	cfg := Load()

	assert.Equal(t, 0, cfg.Camera.DeviceID)
	assert.Equal(t, 0.4, cfg.Detection.NMSThreshold)
}
