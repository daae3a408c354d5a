// Enrolls a subject: stores the reference photo and its ArcFace embedding
// so monitoring sessions and one-shot verification can check identity.
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
	imagePath := flag.String("image", "", "Enrollment photo (default: capture from camera)")
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

	frame, err := loadOrCapture(imagePath, cameraIndex, cfg)
	if err != nil {
		return err
	}
	defer frame.Close()

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

	if err := verifier.Enroll(subjectID, frame); err != nil {
		if errors.Is(err, verify.ErrNoFaceDetected) {
			return fmt.Errorf("no face detected in the enrollment photo, retake it facing the camera")
		}
		return err
	}

	if err := store.SavePhoto(subjectID, frame); err != nil {
		return err
	}

	fmt.Printf("enrolled subject %s: photo %s, embedding stored\n", subjectID, store.PhotoPath(subjectID))
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
