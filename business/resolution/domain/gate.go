package domain

// Gate admits resolutions whose confidence reaches the threshold.
type Gate struct {
	Threshold int
}

// Admits reports whether r may be submitted. Equality passes.
func (g Gate) Admits(r Resolution) bool {
	return r.Confidence >= g.Threshold
}
