package regime

import "fmt"

// SegmentationError reports an invalid window definition or a window
// set that cannot be applied to a series.
type SegmentationError struct {
	Series string
	Window string
	Reason string
}

func (e *SegmentationError) Error() string {
	msg := "segmentation: "
	if e.Series != "" {
		msg = fmt.Sprintf("segmentation of %s: ", e.Series)
	}
	if e.Window != "" {
		msg += fmt.Sprintf("window %s: ", e.Window)
	}
	return msg + e.Reason
}
