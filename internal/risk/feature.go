// Package risk turns a login attempt plus a user's history into a feature
// vector, scores each feature against the user's historical distribution,
// and classifies the combined vector with a pre-trained tree ensemble.
package risk

import (
	"math"
	"time"

	"github.com/secureauth-ai/sentinel/internal/store"
)

// Raw feature vector layout. Z-scores for the same features are appended in
// the same order, so the combined vector has 2*NumRawFeatures entries.
const (
	FeatGeoDistance = iota
	FeatDeviceMatch
	FeatHourOfDay
	FeatAttempts
	FeatAllAttempts
	NumRawFeatures
)

// NumFeatures is the length of the combined (raw + Z-score) vector.
const NumFeatures = 2 * NumRawFeatures

// Attempt is the transient login attempt being evaluated.
type Attempt struct {
	Location store.Location
	Device   string
	At       time.Time
}

// ExtractFeatures builds the raw feature vector for an attempt against the
// record's history. An empty history yields a distance of 0: the first login
// establishes the baseline and cannot be anomalous against itself.
func ExtractFeatures(rec *store.Record, att Attempt) []float64 {
	raw := make([]float64, NumRawFeatures)

	if n := len(rec.PrevLocations); n > 0 {
		raw[FeatGeoDistance] = haversineKm(rec.PrevLocations[n-1], att.Location)
	}
	if n := len(rec.PrevDevices); n > 0 && rec.PrevDevices[n-1] == att.Device {
		raw[FeatDeviceMatch] = 1
	}
	raw[FeatHourOfDay] = float64(att.At.UTC().Hour())
	raw[FeatAttempts] = float64(rec.Attempts)
	raw[FeatAllAttempts] = float64(rec.AllAttempts)

	return raw
}

const earthRadiusKm = 6371.0

// haversineKm is the great-circle distance between two (lat, long) pairs.
func haversineKm(a, b store.Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLong := (b.Long - a.Long) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLong/2)*math.Sin(dLong/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
