package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"

	"github.com/dudu/proctor/internal/analyzer"
	"github.com/dudu/proctor/internal/config"
	"github.com/dudu/proctor/internal/detector"
	"github.com/dudu/proctor/internal/inference"
	"github.com/dudu/proctor/internal/logging"
	"github.com/dudu/proctor/internal/monitor"
	"github.com/dudu/proctor/internal/verify"
)

type options struct {
	SubjectID   string
	CameraIndex int
	Interval    time.Duration
	StatusEvery time.Duration
	Output      string
}

func main() {
	opts := parseFlags()

	if opts.SubjectID == "" {
		fmt.Fprintln(os.Stderr, "Error: --subject flag is required")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	opts := options{}

	flag.StringVar(&opts.SubjectID, "subject", "", "Subject identifier (required)")
	flag.StringVar(&opts.SubjectID, "s", "", "Subject identifier (shorthand)")
	flag.IntVar(&opts.CameraIndex, "camera", -1, "Camera device index (-1 uses PROCTOR_CAMERA_ID)")
	flag.IntVar(&opts.CameraIndex, "c", -1, "Camera device index (shorthand)")
	flag.DurationVar(&opts.Interval, "interval", 0, "Sampling interval (0 uses configuration)")
	flag.DurationVar(&opts.StatusEvery, "status", 5*time.Second, "Live status print interval (0 disables)")
	flag.StringVar(&opts.Output, "out", "", "Write the anomaly log to this file instead of stdout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "proctor - live exam proctoring monitor\n\n")
		fmt.Fprintf(os.Stderr, "Usage: proctor [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  proctor --subject john_01\n")
		fmt.Fprintf(os.Stderr, "  proctor --subject john_01 --camera 1 --out anomalies.json\n")
	}

	flag.Parse()
	return opts
}

func run(opts options) error {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.File)

	deviceID := cfg.Camera.DeviceID
	if opts.CameraIndex >= 0 {
		deviceID = opts.CameraIndex
	}
	interval := cfg.Camera.SampleInterval
	if opts.Interval > 0 {
		interval = opts.Interval
	}

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

	store := verify.NewStore(cfg.ReferenceDir)
	controller := monitor.NewController(frameAnalyzer, store, deviceID, interval, logger)

	if err := controller.StartMonitoring(opts.SubjectID); err != nil {
		return err
	}
	logger.Infof("monitoring subject %s, press Ctrl-C to stop", opts.SubjectID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var statusC <-chan time.Time
	if opts.StatusEvery > 0 {
		statusTicker := time.NewTicker(opts.StatusEvery)
		defer statusTicker.Stop()
		statusC = statusTicker.C
	}

	json := jsoniter.ConfigCompatibleWithStandardLibrary
	for {
		select {
		case <-statusC:
			status := controller.LiveStatus()
			// previews are large; the console line carries the directions only
			status.LeftEyeImage = ""
			status.RightEyeImage = ""
			line, _ := json.Marshal(status)
			fmt.Println(string(line))
		case <-sigChan:
			records, err := controller.StopMonitoring()
			if err != nil {
				return err
			}
			return writeAnomalies(records, opts.Output)
		}
	}
}

func writeAnomalies(records []monitor.AnomalyRecord, path string) error {
	json := jsoniter.ConfigCompatibleWithStandardLibrary
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode anomaly log: %w", err)
	}

	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write anomaly log: %w", err)
	}
	fmt.Printf("wrote %d anomaly records to %s\n", len(records), path)
	return nil
}
