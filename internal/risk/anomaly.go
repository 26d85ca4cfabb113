package risk

import (
	"time"

	"github.com/montanaflynn/stats"

	"github.com/secureauth-ai/sentinel/internal/store"
)

// ZScoreSentinel is reported when a feature deviates from a historically
// constant value (zero standard deviation): any change to a previously
// constant signal is maximally anomalous.
const ZScoreSentinel = 10.0

// CombinedVector returns the raw feature vector with per-feature Z-scores
// appended.
func CombinedVector(rec *store.Record, att Attempt) []float64 {
	raw := ExtractFeatures(rec, att)
	return append(raw, ScoreAnomalies(rec, raw)...)
}

// ScoreAnomalies computes a Z-score for each raw feature against the series
// derivable from the record's history. Features with fewer than two
// historical observations score a neutral 0: insufficient history is not
// penalized.
func ScoreAnomalies(rec *store.Record, raw []float64) []float64 {
	z := make([]float64, NumRawFeatures)

	z[FeatGeoDistance] = zScore(distanceSeries(rec.PrevLocations), raw[FeatGeoDistance])
	z[FeatDeviceMatch] = zScore(deviceMatchSeries(rec.PrevDevices), raw[FeatDeviceMatch])
	z[FeatHourOfDay] = zScore(hourSeries(rec.PrevLogins), raw[FeatHourOfDay])

	// The attempt counters are scalars with no stored per-login series, so
	// they fall under the <2-observation rule and stay neutral.
	return z
}

func zScore(history []float64, x float64) float64 {
	if len(history) < 2 {
		return 0
	}

	mean, err := stats.Mean(history)
	if err != nil {
		return 0
	}
	sd, err := stats.StandardDeviationSample(history)
	if err != nil {
		return 0
	}

	if sd == 0 {
		if x == mean {
			return 0
		}
		return ZScoreSentinel
	}
	return (x - mean) / sd
}

// distanceSeries is the great-circle distance between each consecutive pair
// of historical locations.
func distanceSeries(locs []store.Location) []float64 {
	if len(locs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(locs)-1)
	for i := 1; i < len(locs); i++ {
		out = append(out, haversineKm(locs[i-1], locs[i]))
	}
	return out
}

// deviceMatchSeries is 1 for each historical login whose fingerprint matched
// the one before it.
func deviceMatchSeries(devices []string) []float64 {
	if len(devices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(devices)-1)
	for i := 1; i < len(devices); i++ {
		if devices[i] == devices[i-1] {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
	}
	return out
}

// hourSeries is the UTC hour of day of each historical login.
func hourSeries(times []time.Time) []float64 {
	if len(times) < 2 {
		return nil
	}
	out := make([]float64, 0, len(times))
	for _, t := range times {
		out = append(out, float64(t.UTC().Hour()))
	}
	return out
}
