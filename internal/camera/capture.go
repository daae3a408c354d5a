package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Capture manages the exam-station webcam. One capture per monitored
// subject; the device is held for the whole session.
type Capture struct {
	webcam   *gocv.VideoCapture
	deviceID int
	width    int
	height   int
	mu       sync.Mutex
}

// Open acquires the capture device. Failure here is fatal for a proctoring
// session: no camera means no monitoring is possible.
func Open(deviceID int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	width := int(webcam.Get(gocv.VideoCaptureFrameWidth))
	height := int(webcam.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{
		webcam:   webcam,
		deviceID: deviceID,
		width:    width,
		height:   height,
	}, nil
}

// Read captures a frame into the provided Mat. Returns false when the
// device yields nothing; callers treat that as a skipped tick, not an error.
func (c *Capture) Read(frame *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return false
	}

	return c.webcam.Read(frame)
}

// Snapshot grabs a single frame, retrying a few reads to let the sensor
// warm up. Used for enrollment and one-shot verification.
func (c *Capture) Snapshot() (gocv.Mat, error) {
	frame := gocv.NewMat()
	for i := 0; i < 5; i++ {
		if c.Read(&frame) && !frame.Empty() {
			return frame, nil
		}
	}
	frame.Close()
	return gocv.NewMat(), fmt.Errorf("camera %d produced no frame", c.deviceID)
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		return err
	}
	return nil
}
