package regime

import (
	"fmt"

	"regimelab/internal/series"
)

// Segment is a maximal run of consecutive observations sharing a label
// and crisis. Start is inclusive, End exclusive.
type Segment struct {
	Label  Label
	Crisis string
	Start  int
	End    int
}

// Len returns the number of observations in the segment.
func (s Segment) Len() int {
	return s.End - s.Start
}

// Segmentation is the per-point labeling of one series plus the
// contiguous segments it induces. Crises holds the crisis name per
// point, empty for normal observations.
type Segmentation struct {
	Labels   []Label
	Crises   []string
	Segments []Segment
}

// ByLabel returns the observation indices carrying each label. Labels
// absent from the series are absent from the map.
func (sg *Segmentation) ByLabel() map[Label][]int {
	byLabel := make(map[Label][]int)
	for i, l := range sg.Labels {
		byLabel[l] = append(byLabel[l], i)
	}
	return byLabel
}

// Segmenter applies a validated window set to series.
type Segmenter struct {
	set *WindowSet
}

// NewSegmenter validates the window set and returns a segmenter for it.
func NewSegmenter(set *WindowSet) (*Segmenter, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &Segmenter{set: set}, nil
}

// Segment labels every observation of s. Intervals are inclusive of
// their left edge and exclusive of their right edge, so an observation
// on a boundary belongs to the regime that starts there. Windows are
// applied in order: crisis cores are never demoted by a later window's
// extension, while contested extension dates go to the later window
// under the last_wins policy.
func (sg *Segmenter) Segment(s *series.Series) (*Segmentation, error) {
	if s.Len() == 0 {
		return nil, &SegmentationError{Series: s.Name, Reason: "empty series"}
	}

	labels := make([]Label, s.Len())
	crises := make([]string, s.Len())

	first := s.First().Date
	last := s.Last().Date

	for _, w := range sg.set.Crises {
		preStart := w.PreStart(sg.set.PreMonths)
		postEnd := w.PostEnd(sg.set.PostMonths)

		// A window partially outside the series is clipped by the
		// point loop; a window entirely outside is a definition error
		// for this dataset.
		if !postEnd.After(first) || preStart.After(last) {
			return nil, &SegmentationError{
				Series: s.Name,
				Window: w.Name,
				Reason: fmt.Sprintf("span %s..%s does not intersect series range %s..%s",
					preStart.Format(dateLayout), postEnd.Format(dateLayout),
					first.Format(dateLayout), last.Format(dateLayout)),
			}
		}

		for i, p := range s.Points {
			d := p.Date
			var label Label
			switch {
			case !d.Before(w.Start) && d.Before(w.End):
				label = Crisis
			case !d.Before(preStart) && d.Before(w.Start):
				label = PreCrisis
			case !d.Before(w.End) && d.Before(postEnd):
				label = PostCrisis
			default:
				continue
			}
			if labels[i] == Crisis && label != Crisis {
				continue
			}
			labels[i] = label
			crises[i] = w.Name
		}
	}

	return &Segmentation{
		Labels:   labels,
		Crises:   crises,
		Segments: cut(labels, crises),
	}, nil
}

// cut groups consecutive identical (label, crisis) pairs into segments.
// The result partitions the series: segment lengths sum to its length.
func cut(labels []Label, crises []string) []Segment {
	var segments []Segment
	start := 0
	for i := 1; i <= len(labels); i++ {
		if i == len(labels) || labels[i] != labels[start] || crises[i] != crises[start] {
			segments = append(segments, Segment{
				Label:  labels[start],
				Crisis: crises[start],
				Start:  start,
				End:    i,
			})
			start = i
		}
	}
	return segments
}
