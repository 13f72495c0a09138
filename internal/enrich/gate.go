package enrich

import "SOTAWatch/internal/domain"

// Gate decides whether an analysed item is worth storing.
type Gate struct {
	Threshold           int
	RequireNoiseVerdict bool
}

// Pass reports whether a clears the gate. It is a pure comparison.
func (g Gate) Pass(a domain.Analysis) bool {
	if a.IsNoise == nil && g.RequireNoiseVerdict {
		return false
	}
	if a.Noise() {
		return false
	}
	return a.Score >= g.Threshold
}
