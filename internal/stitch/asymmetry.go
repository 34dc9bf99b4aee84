package stitch

import (
	"math"
	"strings"

	"golang.org/x/text/cases"

	"github.com/roach88/reflred/internal/ir"
)

// AsymmetryLabel is the state name of the derived spin-asymmetry curve.
const AsymmetryLabel = "SA"

var fold = cases.Fold()

// canonicalState folds case and drops separators so that "Off_Off",
// "off-off" and "OFFOFF" compare equal.
func canonicalState(s string) string {
	s = fold.String(s)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// DetermineAsymmetryStates picks the plus and minus states used for the
// spin asymmetry.
//
// With two states, the one named off/off is plus. With more, the pair
// named off/off and on/on is preferred, then the pair whose polarization
// labels are "++" and "--". labelOf may be nil when labels are unknown.
//
// When no rule applies the first and last states are returned and fallback
// is true; callers should warn. Fewer than two states return empty names.
func DetermineAsymmetryStates(states []string, labelOf func(string) string) (plus, minus string, fallback bool) {
	if len(states) < 2 {
		return "", "", false
	}
	first, last := states[0], states[len(states)-1]

	if len(states) == 2 {
		switch {
		case canonicalState(first) == "offoff":
			return first, last, false
		case canonicalState(last) == "offoff":
			return last, first, false
		}
		return first, last, true
	}

	if p, m := findPair(states, canonicalState, "offoff", "onon"); p != "" {
		return p, m, false
	}
	if labelOf != nil {
		if p, m := findPair(states, labelOf, "++", "--"); p != "" {
			return p, m, false
		}
	}
	return first, last, true
}

func findPair(states []string, key func(string) string, plusKey, minusKey string) (string, string) {
	var plus, minus string
	for _, s := range states {
		switch key(s) {
		case plusKey:
			if plus == "" {
				plus = s
			}
		case minusKey:
			if minus == "" {
				minus = s
			}
		}
	}
	if plus == "" || minus == "" {
		return "", ""
	}
	return plus, minus
}

// Asymmetry computes the spin asymmetry of two merged states. ok is false
// when either state is missing from merged.
func Asymmetry(merged map[string]ir.Curve, plus, minus string) (ir.Curve, bool) {
	p, okP := merged[plus]
	m, okM := merged[minus]
	if !okP || !okM {
		return ir.Curve{}, false
	}
	return asymmetry(p, m), true
}

// asymmetry computes SA = (P - M) / (P + M) on the Q points shared by the
// plus and minus curves, with
//
//	dSA = 2 * sqrt(M² dP² + P² dM²) / (P + M)²
//
// Points where P + M is zero are dropped.
func asymmetry(plus, minus ir.Curve) ir.Curve {
	var out ir.Curve
	i, j := 0, 0
	for i < plus.Len() && j < minus.Len() {
		qp, qm := plus.Q[i], minus.Q[j]
		switch {
		case sameQ(qp, qm):
			p, m := plus.R[i], minus.R[j]
			sum := p + m
			if sum != 0 {
				dp, dm := plus.DR[i], minus.DR[j]
				out.Q = append(out.Q, qp)
				out.R = append(out.R, (p-m)/sum)
				out.DR = append(out.DR, 2*math.Sqrt(m*m*dp*dp+p*p*dm*dm)/(sum*sum))
			}
			i++
			j++
		case qp < qm:
			i++
		default:
			j++
		}
	}
	return out
}

func sameQ(a, b float64) bool {
	return math.Abs(a-b) <= 1e-12*math.Max(math.Abs(a), math.Abs(b))
}
