package monitor

import (
	"time"

	"github.com/dudu/proctor/internal/analyzer"
	"github.com/dudu/proctor/internal/gaze"
	"github.com/dudu/proctor/internal/pose"
)

// AnomalyKind names a deviation from the expected "one face, centered,
// forward-facing" baseline.
type AnomalyKind string

const (
	AnomalyFaceNotDetected AnomalyKind = "face_not_detected"
	AnomalyMultipleFaces   AnomalyKind = "multiple_faces"
	AnomalyFaceMismatch    AnomalyKind = "face_mismatch"
	AnomalyHeadLeft        AnomalyKind = "head_left"
	AnomalyHeadRight       AnomalyKind = "head_right"
	AnomalyHeadUp          AnomalyKind = "head_up"
	AnomalyHeadDown        AnomalyKind = "head_down"
	AnomalyLeftEyeLeft     AnomalyKind = "left_eye_left"
	AnomalyLeftEyeRight    AnomalyKind = "left_eye_right"
	AnomalyRightEyeLeft    AnomalyKind = "right_eye_left"
	AnomalyRightEyeRight   AnomalyKind = "right_eye_right"
)

// AnomalyRecord is one append-only log entry. Records are never mutated or
// removed; insertion order is chronological order. The consumer decides how
// to persist them.
type AnomalyRecord struct {
	Timestamp  time.Time   `json:"timestamp"`
	Kind       AnomalyKind `json:"type"`
	Confidence float64     `json:"confidence,omitempty"`
	NumFaces   int         `json:"num_faces,omitempty"`
}

// deriveAnomalies classifies one tick's analysis result. Count anomalies
// and pose/gaze anomalies are mutually exclusive: gaze analysis only runs
// when exactly one face is present, so a multiple_faces tick can never also
// carry a head_left. Only directional eye results deviate from baseline;
// Undetected and N/A surface through the live status instead.
func deriveAnomalies(result analyzer.Result, ts time.Time) []AnomalyRecord {
	if result.NumFaces == 0 {
		return []AnomalyRecord{{
			Timestamp:  ts,
			Kind:       AnomalyFaceNotDetected,
			Confidence: 1.0,
		}}
	}
	if result.NumFaces > 1 {
		return []AnomalyRecord{{
			Timestamp:  ts,
			Kind:       AnomalyMultipleFaces,
			Confidence: 1.0,
			NumFaces:   result.NumFaces,
		}}
	}

	var records []AnomalyRecord
	if result.Pose != nil {
		switch result.Pose.Horizontal {
		case pose.Left:
			records = append(records, AnomalyRecord{Timestamp: ts, Kind: AnomalyHeadLeft})
		case pose.Right:
			records = append(records, AnomalyRecord{Timestamp: ts, Kind: AnomalyHeadRight})
		}
		switch result.Pose.Vertical {
		case pose.Up:
			records = append(records, AnomalyRecord{Timestamp: ts, Kind: AnomalyHeadUp})
		case pose.Down:
			records = append(records, AnomalyRecord{Timestamp: ts, Kind: AnomalyHeadDown})
		}
	}

	switch result.LeftEye {
	case gaze.Left:
		records = append(records, AnomalyRecord{Timestamp: ts, Kind: AnomalyLeftEyeLeft})
	case gaze.Right:
		records = append(records, AnomalyRecord{Timestamp: ts, Kind: AnomalyLeftEyeRight})
	}
	switch result.RightEye {
	case gaze.Left:
		records = append(records, AnomalyRecord{Timestamp: ts, Kind: AnomalyRightEyeLeft})
	case gaze.Right:
		records = append(records, AnomalyRecord{Timestamp: ts, Kind: AnomalyRightEyeRight})
	}

	return records
}
