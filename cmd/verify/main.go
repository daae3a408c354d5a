// One-shot identity verification: captures (or loads) a probe image and
// compares it against the subject's enrolled embedding.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/camera"
	"github.com/dudu/proctor/internal/config"
	"github.com/dudu/proctor/internal/detector"
	"github.com/dudu/proctor/internal/inference"
	"github.com/dudu/proctor/internal/logging"
	"github.com/dudu/proctor/internal/verify"
)

func main() {
	subjectID := flag.String("subject", "", "Subject identifier (required)")
	imagePath := flag.String("image", "", "Probe image (default: capture from camera)")
	cameraIndex := flag.Int("camera", -1, "Camera device index (-1 uses PROCTOR_CAMERA_ID)")
	flag.Parse()

	if *subjectID == "" {
		fmt.Fprintln(os.Stderr, "Error: --subject flag is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*subjectID, *imagePath, *cameraIndex); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(subjectID, imagePath string, cameraIndex int) error {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.File)

	probe, err := loadOrCapture(imagePath, cameraIndex, cfg)
	if err != nil {
		return err
	}
	defer probe.Close()

	if err := inference.Initialize(cfg.Models.OnnxLibrary); err != nil {
		return err
	}
	defer inference.Shutdown()

	locator, err := detector.NewSCRFD(cfg.Models.SCRFD, cfg.Detection.InputSize,
		float32(cfg.Detection.ConfThreshold), float32(cfg.Detection.NMSThreshold), logger)
	if err != nil {
		return err
	}
	defer locator.Close()

	encoder, err := verify.NewEncoder(cfg.Models.ArcFace, logger)
	if err != nil {
		return err
	}
	defer encoder.Close()

	store := verify.NewStore(cfg.ReferenceDir)
	verifier := verify.NewVerifier(locator, encoder, store, logger)

	result, err := verifier.VerifySubject(subjectID, probe)
	switch {
	case errors.Is(err, verify.ErrNoEmbedding):
		return fmt.Errorf("subject %s is not enrolled, run the enroll tool first", subjectID)
	case errors.Is(err, verify.ErrNoFaceDetected):
		// distinct from a mismatch: the probe needs retaking, not rejection
		return fmt.Errorf("no face detected in the probe image")
	case err != nil:
		return err
	}

	if result.Match {
		fmt.Printf("identity verified (similarity %.4f)\n", result.Similarity)
	} else {
		fmt.Printf("identity mismatch (similarity %.4f)\n", result.Similarity)
	}
	return nil
}

func loadOrCapture(imagePath string, cameraIndex int, cfg *config.Config) (gocv.Mat, error) {
	if imagePath != "" {
		img := gocv.IMRead(imagePath, gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			return gocv.NewMat(), fmt.Errorf("failed to load image: %s", imagePath)
		}
		return img, nil
	}

	deviceID := cfg.Camera.DeviceID
	if cameraIndex >= 0 {
		deviceID = cameraIndex
	}

	cam, err := camera.Open(deviceID)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer cam.Close()

	return cam.Snapshot()
}
