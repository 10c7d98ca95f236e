package core

import "hole-detector/internal/core/types"

// DetectionReport is the per-image document written to the archive.
type DetectionReport struct {
	RegularHolesCount  int         `json:"regular_holes_count"`
	RegularHoles       []types.Box `json:"regular_holes"`
	ThreadedHolesCount int         `json:"threaded_holes_count"`
	ThreadedHoles      []types.Box `json:"threaded_holes"`
}

// BuildReport partitions detections into regular and threaded holes,
// preserving detector order. Detections of any other class are left out of
// the report; their number is returned so callers can surface it.
func BuildReport(detections []types.Detection) (DetectionReport, int) {
	report := DetectionReport{
		RegularHoles:  []types.Box{},
		ThreadedHoles: []types.Box{},
	}

	dropped := 0
	for _, det := range detections {
		switch det.Class {
		case types.RegularHole:
			report.RegularHoles = append(report.RegularHoles, det.Box)
		case types.ThreadedHole:
			report.ThreadedHoles = append(report.ThreadedHoles, det.Box)
		default:
			dropped++
		}
	}

	report.RegularHolesCount = len(report.RegularHoles)
	report.ThreadedHolesCount = len(report.ThreadedHoles)

	return report, dropped
}
