// Package driftstats implements the statistical drift tests DriftMonitor
// runs per feature column: a two-sample Kolmogorov-Smirnov test, the
// Population Stability Index (PSI), and a normalized mean shift. Grounded
// on original_source/ml/evaluation/drift_detector.py's DriftDetector,
// reimplemented against the standard library's math package since no
// third-party statistics or ML library appears anywhere in the retrieved
// example pack.
package driftstats

import (
	"math"
	"sort"

	"github.com/sasank-in/ml-drift-pipeline/internal/models"
)

// Thresholds mirror drift_detector.py's fixed constants: a feature is
// flagged if its KS p-value falls below the configured significance level,
// or its PSI exceeds 0.2, or its normalized mean shift exceeds 2.0.
const (
	psiThreshold       = 0.2
	meanShiftThreshold = 2.0
	psiBins            = 10
	psiZeroFloor       = 0.0001
)

// FeatureTest runs the KS test, PSI, and mean shift for one feature column,
// flagging drift per drift_detector.py's detect_drift combination rule.
func FeatureTest(reference, current []float64, pValueThreshold float64) models.FeatureDriftMetric {
	ksStat, ksPValue := ksTwoSample(reference, current)
	psi := populationStabilityIndex(reference, current, psiBins)
	shift := meanShift(reference, current)

	detected := ksPValue < pValueThreshold || psi > psiThreshold || shift > meanShiftThreshold

	return models.FeatureDriftMetric{
		KSStatistic:   ksStat,
		KSPValue:      ksPValue,
		PSI:           psi,
		MeanShift:     shift,
		DriftDetected: detected,
	}
}

// Detect runs FeatureTest across every named feature column and aggregates
// per drift_detector.py's "drift_count > len(feature_names) * 0.2" rule.
func Detect(reference, current map[string][]float64, featureNames []string, pValueThreshold float64) models.DriftMetrics {
	features := make(map[string]models.FeatureDriftMetric, len(featureNames))
	driftCount := 0

	for _, name := range featureNames {
		m := FeatureTest(reference[name], current[name], pValueThreshold)
		if m.DriftDetected {
			driftCount++
		}
		features[name] = m
	}

	total := len(featureNames)
	var pct float64
	if total > 0 {
		pct = (float64(driftCount) / float64(total)) * 100
	}

	return models.DriftMetrics{
		Features: features,
		Summary: models.DriftSummary{
			TotalFeatures:     total,
			FeaturesWithDrift: driftCount,
			DriftPercentage:   pct,
		},
	}
}

// Overall reports whether the aggregate drift fraction exceeds 20%, the
// same threshold drift_detector.py applies to decide overall_drift.
func Overall(m models.DriftMetrics) bool {
	if m.Summary.TotalFeatures == 0 {
		return false
	}
	return float64(m.Summary.FeaturesWithDrift) > float64(m.Summary.TotalFeatures)*0.2
}

// meanShift is the absolute shift in means normalized by the reference
// standard deviation, with the same 1e-10 floor drift_detector.py uses to
// avoid division by zero on a constant reference column.
func meanShift(reference, current []float64) float64 {
	refMean := mean(reference)
	currMean := mean(current)
	refStd := stddev(reference, refMean)
	return math.Abs(currMean-refMean) / (refStd + 1e-10)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

// ksTwoSample computes the two-sample Kolmogorov-Smirnov statistic and its
// asymptotic p-value, matching scipy.stats.ks_2samp's default ("asymp")
// mode: D is the maximum absolute gap between the two samples' empirical
// CDFs, and the p-value comes from the Kolmogorov distribution's
// complementary CDF evaluated at the scaled statistic.
func ksTwoSample(reference, current []float64) (float64, float64) {
	n, m := len(reference), len(current)
	if n == 0 || m == 0 {
		return 0, 1
	}

	ref := append([]float64(nil), reference...)
	cur := append([]float64(nil), current...)
	sort.Float64s(ref)
	sort.Float64s(cur)

	d := 0.0
	i, j := 0, 0
	var cdfRef, cdfCur float64
	for i < n && j < m {
		// Step past every copy of the next smallest value in both samples
		// before comparing, so tied values never open a spurious gap.
		v := math.Min(ref[i], cur[j])
		for i < n && ref[i] <= v {
			i++
		}
		for j < m && cur[j] <= v {
			j++
		}
		cdfRef = float64(i) / float64(n)
		cdfCur = float64(j) / float64(m)
		if diff := math.Abs(cdfRef - cdfCur); diff > d {
			d = diff
		}
	}
	// Drain any remaining ties at the tail.
	for i < n {
		i++
		cdfRef = float64(i) / float64(n)
		if diff := math.Abs(cdfRef - cdfCur); diff > d {
			d = diff
		}
	}
	for j < m {
		j++
		cdfCur = float64(j) / float64(m)
		if diff := math.Abs(cdfRef - cdfCur); diff > d {
			d = diff
		}
	}

	en := math.Sqrt(float64(n) * float64(m) / float64(n+m))
	pValue := kolmogorovSurvival((en + 0.12 + 0.11/en) * d)
	return d, pValue
}

// kolmogorovSurvival evaluates the Kolmogorov distribution's survival
// function Q(x) = 2 * sum_{k=1}^inf (-1)^(k-1) * exp(-2 k^2 x^2), the
// standard asymptotic approximation used for two-sample KS p-values.
func kolmogorovSurvival(x float64) float64 {
	if x <= 0 {
		return 1
	}
	if x >= 6 {
		return 0
	}

	sum := 0.0
	for k := 1; k <= 100; k++ {
		term := math.Exp(-2 * float64(k*k) * x * x)
		if k%2 == 0 {
			sum -= term
		} else {
			sum += term
		}
		if term < 1e-12 {
			break
		}
	}

	p := 2 * sum
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// populationStabilityIndex bins the reference sample into `bins` equal-
// frequency percentile buckets and compares the current sample's
// distribution across those same buckets, per drift_detector.py's
// _calculate_psi: duplicate breakpoints collapse (degenerate reference),
// fewer than two breakpoints yields 0, and zero-probability bins are
// floored to 0.0001 before the log-ratio sum.
func populationStabilityIndex(reference, current []float64, bins int) float64 {
	if len(reference) == 0 || len(current) == 0 {
		return 0
	}

	breakpoints := percentileBreakpoints(reference, bins)
	if len(breakpoints) < 2 {
		return 0
	}

	refCounts := histogram(reference, breakpoints)
	currCounts := histogram(current, breakpoints)

	psi := 0.0
	for i := range refCounts {
		refDist := float64(refCounts[i]) / float64(len(reference))
		currDist := float64(currCounts[i]) / float64(len(current))
		if refDist == 0 {
			refDist = psiZeroFloor
		}
		if currDist == 0 {
			currDist = psiZeroFloor
		}
		psi += (currDist - refDist) * math.Log(currDist/refDist)
	}
	return psi
}

// percentileBreakpoints returns bins+1 percentile cut points over xs
// (linear interpolation, matching numpy.percentile's default), deduplicated
// in sorted order.
func percentileBreakpoints(xs []float64, bins int) []float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	raw := make([]float64, bins+1)
	for i := 0; i <= bins; i++ {
		q := float64(i) / float64(bins) * 100
		raw[i] = percentile(sorted, q)
	}

	out := raw[:0:0]
	for i, v := range raw {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// percentile computes the q-th percentile of a pre-sorted slice using
// linear interpolation between closest ranks (numpy.percentile's default
// "linear" method).
func percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := (q / 100) * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// histogram counts xs into len(breakpoints)-1 bins defined by breakpoints,
// with the final bin inclusive of its upper edge (matching
// numpy.histogram).
func histogram(xs []float64, breakpoints []float64) []int {
	counts := make([]int, len(breakpoints)-1)
	last := len(counts) - 1
	for _, x := range xs {
		for b := 0; b < len(counts); b++ {
			if x >= breakpoints[b] && (x < breakpoints[b+1] || (b == last && x <= breakpoints[b+1])) {
				counts[b]++
				break
			}
		}
	}
	return counts
}
