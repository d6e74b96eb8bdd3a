// Package regime labels daily observations with crisis regimes and
// cuts series into contiguous labeled segments.
package regime

// Label classifies one observation relative to the configured crises.
type Label int

const (
	Normal Label = iota
	PreCrisis
	Crisis
	PostCrisis
)

func (l Label) String() string {
	switch l {
	case Normal:
		return "normal"
	case PreCrisis:
		return "pre_crisis"
	case Crisis:
		return "crisis"
	case PostCrisis:
		return "post_crisis"
	default:
		return "unknown"
	}
}

// Labels returns every label in presentation order.
func Labels() []Label {
	return []Label{Normal, PreCrisis, Crisis, PostCrisis}
}

// IsHighRisk reports whether the label marks an elevated-risk day:
// the pre-crisis runup or the crisis core. Post-crisis recovery does
// not count.
func (l Label) IsHighRisk() bool {
	return l == PreCrisis || l == Crisis
}
