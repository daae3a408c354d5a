// One-shot proctoring analysis of a single image, for checks against an
// uploaded frame without an active session.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"gocv.io/x/gocv"

	"github.com/dudu/proctor/internal/analyzer"
	"github.com/dudu/proctor/internal/config"
	"github.com/dudu/proctor/internal/detector"
	"github.com/dudu/proctor/internal/inference"
	"github.com/dudu/proctor/internal/logging"
)

func main() {
	imagePath := flag.String("image", "", "Image file to analyze (required)")
	withPreviews := flag.Bool("previews", false, "Include base64 eye previews in the output")
	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --image flag is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(*imagePath, *withPreviews); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(imagePath string, withPreviews bool) error {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.File)

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("failed to load image: %s", imagePath)
	}
	defer img.Close()

	if err := inference.Initialize(cfg.Models.OnnxLibrary); err != nil {
		return err
	}
	defer inference.Shutdown()

	counter, err := detector.NewCounter(cfg.Models.Cascade)
	if err != nil {
		return err
	}

	locator, err := detector.NewSCRFD(cfg.Models.SCRFD, cfg.Detection.InputSize,
		float32(cfg.Detection.ConfThreshold), float32(cfg.Detection.NMSThreshold), logger)
	if err != nil {
		counter.Close()
		return err
	}

	mesh, err := detector.NewMesh(cfg.Models.FaceMesh, locator, logger)
	if err != nil {
		counter.Close()
		locator.Close()
		return err
	}

	frameAnalyzer := analyzer.New(counter, mesh, logger)
	defer frameAnalyzer.Close()

	status := frameAnalyzer.Analyze(img).Status()
	if !withPreviews {
		status.LeftEyeImage = ""
		status.RightEyeImage = ""
	}

	json := jsoniter.ConfigCompatibleWithStandardLibrary
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
