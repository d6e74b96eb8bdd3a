package regime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimelab/internal/series"
)

func seriesWithDates(t *testing.T, name string, dates ...string) *series.Series {
	t.Helper()
	points := make([]series.Point, len(dates))
	for i, d := range dates {
		parsed, err := time.Parse("2006-01-02", d)
		require.NoError(t, err)
		points[i] = series.Point{Date: parsed, Close: 100 + float64(i)}
	}
	return series.New(name, points)
}

func singleWindowSet(t *testing.T) *WindowSet {
	t.Helper()
	return &WindowSet{
		PreMonths:     6,
		PostMonths:    6,
		OverlapPolicy: OverlapLastWins,
		Crises: []Window{
			{Name: "covid_crash", Start: date(2020, 2, 15), End: date(2020, 5, 1)},
		},
	}
}

func TestLabelHighRisk(t *testing.T) {
	assert.False(t, Normal.IsHighRisk())
	assert.True(t, PreCrisis.IsHighRisk())
	assert.True(t, Crisis.IsHighRisk())
	assert.False(t, PostCrisis.IsHighRisk(), "recovery does not count as high risk")
}

func TestSegmentBoundaryTieBreak(t *testing.T) {
	s := seriesWithDates(t, "SP500",
		"2019-08-14", // day before pre window opens
		"2019-08-15", // pre window opens here
		"2020-02-14", // last pre day
		"2020-02-15", // crisis opens here
		"2020-04-30", // last crisis day
		"2020-05-01", // post window opens here
		"2020-10-31", // last post day
		"2020-11-01", // back to normal
	)

	sg, err := NewSegmenter(singleWindowSet(t))
	require.NoError(t, err)

	seg, err := sg.Segment(s)
	require.NoError(t, err)

	want := []Label{Normal, PreCrisis, PreCrisis, Crisis, Crisis, PostCrisis, PostCrisis, Normal}
	for i, w := range want {
		assert.Equal(t, w, seg.Labels[i], "label at %s", s.Points[i].Date.Format("2006-01-02"))
	}

	assert.Equal(t, "", seg.Crises[0], "normal points carry no crisis name")
	assert.Equal(t, "covid_crash", seg.Crises[3])
	assert.Equal(t, "covid_crash", seg.Crises[6])
}

func TestSegmentPartitionsSeries(t *testing.T) {
	s := seriesWithDates(t, "SP500",
		"2019-07-01", "2019-09-01", "2020-01-10", "2020-03-01",
		"2020-04-15", "2020-06-01", "2020-12-01", "2021-03-01",
	)

	sg, err := NewSegmenter(singleWindowSet(t))
	require.NoError(t, err)

	seg, err := sg.Segment(s)
	require.NoError(t, err)

	total := 0
	for i, segment := range seg.Segments {
		total += segment.Len()
		if i > 0 {
			assert.Equal(t, seg.Segments[i-1].End, segment.Start, "segments must be contiguous")
		}
	}
	assert.Equal(t, s.Len(), total, "segment lengths must sum to series length")

	byLabel := seg.ByLabel()
	counted := 0
	for _, idx := range byLabel {
		counted += len(idx)
	}
	assert.Equal(t, s.Len(), counted)
}

func TestSegmentClipsPartialWindow(t *testing.T) {
	// Series starts inside the crisis core; the pre extension has no
	// observations to label and that is fine.
	s := seriesWithDates(t, "SP500", "2020-03-01", "2020-03-02", "2020-06-01")

	sg, err := NewSegmenter(singleWindowSet(t))
	require.NoError(t, err)

	seg, err := sg.Segment(s)
	require.NoError(t, err)

	assert.Equal(t, Crisis, seg.Labels[0])
	assert.Equal(t, PostCrisis, seg.Labels[2])
}

func TestSegmentWindowOutsideRange(t *testing.T) {
	s := seriesWithDates(t, "OLD", "1990-01-02", "1990-06-01", "1991-01-02")

	sg, err := NewSegmenter(singleWindowSet(t))
	require.NoError(t, err)

	_, err = sg.Segment(s)

	var segErr *SegmentationError
	require.ErrorAs(t, err, &segErr)
	assert.Equal(t, "OLD", segErr.Series)
	assert.Equal(t, "covid_crash", segErr.Window)
	assert.Contains(t, segErr.Reason, "does not intersect")
}

func TestSegmentEmptySeries(t *testing.T) {
	sg, err := NewSegmenter(singleWindowSet(t))
	require.NoError(t, err)

	_, err = sg.Segment(series.New("EMPTY", nil))

	var segErr *SegmentationError
	require.ErrorAs(t, err, &segErr)
	assert.Contains(t, segErr.Reason, "empty series")
}

func TestOverlapPolicyLastWins(t *testing.T) {
	set := &WindowSet{
		PreMonths:     6,
		PostMonths:    6,
		OverlapPolicy: OverlapLastWins,
		Crises: []Window{
			{Name: "first", Start: date(2020, 1, 1), End: date(2020, 2, 1)},
			{Name: "second", Start: date(2020, 6, 1), End: date(2020, 7, 1)},
		},
	}

	sg, err := NewSegmenter(set)
	require.NoError(t, err)

	// 2020-03-15 sits in both the post extension of first and the pre
	// extension of second; the later window wins.
	s := seriesWithDates(t, "X", "2020-01-15", "2020-03-15", "2020-06-15")
	seg, err := sg.Segment(s)
	require.NoError(t, err)

	assert.Equal(t, Crisis, seg.Labels[0])
	assert.Equal(t, "first", seg.Crises[0])
	assert.Equal(t, PreCrisis, seg.Labels[1])
	assert.Equal(t, "second", seg.Crises[1], "later window overwrites contested extension dates")
	assert.Equal(t, Crisis, seg.Labels[2])
}

func TestOverlapPolicyError(t *testing.T) {
	set := &WindowSet{
		PreMonths:     6,
		PostMonths:    6,
		OverlapPolicy: OverlapError,
		Crises: []Window{
			{Name: "first", Start: date(2020, 1, 1), End: date(2020, 2, 1)},
			{Name: "second", Start: date(2020, 6, 1), End: date(2020, 7, 1)},
		},
	}

	_, err := NewSegmenter(set)

	var segErr *SegmentationError
	require.ErrorAs(t, err, &segErr)
	assert.Equal(t, "second", segErr.Window)
	assert.Contains(t, segErr.Reason, "extension overlaps")
}

func TestWindowSetValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*WindowSet)
		reason string
	}{
		{
			name:   "start after end",
			mutate: func(ws *WindowSet) { ws.Crises[0].Start = date(2021, 1, 1) },
			reason: "start must precede end",
		},
		{
			name: "unordered windows",
			mutate: func(ws *WindowSet) {
				ws.Crises = append(ws.Crises, Window{Name: "earlier", Start: date(2010, 1, 1), End: date(2010, 6, 1)})
			},
			reason: "ordered by start",
		},
		{
			name: "core overlap",
			mutate: func(ws *WindowSet) {
				ws.Crises = append(ws.Crises, Window{Name: "clash", Start: date(2020, 4, 1), End: date(2020, 8, 1)})
			},
			reason: "core window overlaps",
		},
		{
			name:   "negative months",
			mutate: func(ws *WindowSet) { ws.PreMonths = -1 },
			reason: "must not be negative",
		},
		{
			name:   "no windows",
			mutate: func(ws *WindowSet) { ws.Crises = nil },
			reason: "no crisis windows",
		},
		{
			name:   "bad policy",
			mutate: func(ws *WindowSet) { ws.OverlapPolicy = "maybe" },
			reason: "unknown overlap policy",
		},
		{
			name: "duplicate names",
			mutate: func(ws *WindowSet) {
				ws.Crises = append(ws.Crises, Window{Name: "covid_crash", Start: date(2021, 1, 1), End: date(2021, 2, 1)})
			},
			reason: "duplicate window name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := singleWindowSet(t)
			tt.mutate(ws)

			err := ws.Validate()
			var segErr *SegmentationError
			require.ErrorAs(t, err, &segErr)
			assert.Contains(t, segErr.Reason, tt.reason)
		})
	}
}
