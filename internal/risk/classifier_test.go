package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClassifier(t *testing.T) *Classifier {
	cls, err := LoadClassifier("", 0.5, zap.NewNop())
	require.NoError(t, err)
	return cls
}

// testVector builds a combined feature vector with every entry zero except
// the given overrides.
func testVector(overrides map[int]float64) []float64 {
	vec := make([]float64, NumFeatures)
	for i, v := range overrides {
		vec[i] = v
	}
	return vec
}

func TestClassifierScore(t *testing.T) {
	cls := newTestClassifier(t)

	tests := []struct {
		name       string
		vec        []float64
		wantProb   float64
		wantUnsafe bool
	}{
		{
			name: "nearby login on known device",
			vec: testVector(map[int]float64{
				FeatDeviceMatch: 1,
			}),
			wantProb:   0.096667,
			wantUnsafe: false,
		},
		{
			name: "distant login on new device",
			vec: testVector(map[int]float64{
				FeatGeoDistance: 5570,
			}),
			wantProb:   0.578333,
			wantUnsafe: true,
		},
		{
			name: "distant login with anomalous z-scores",
			vec: testVector(map[int]float64{
				FeatGeoDistance:                  8000,
				NumRawFeatures + FeatGeoDistance: ZScoreSentinel,
				NumRawFeatures + FeatDeviceMatch: ZScoreSentinel,
				NumRawFeatures + FeatHourOfDay:   ZScoreSentinel,
			}),
			// Ensemble one: (0.97 + 0.92 + 0.75) / 3; ensemble two:
			// (0.82 + 0.15 + 0.88) / 3.
			wantProb:   0.748333,
			wantUnsafe: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsafe, prob, err := cls.Classify(tt.vec)

			require.NoError(t, err)
			assert.InDelta(t, tt.wantProb, prob, 1e-4)
			assert.Equal(t, tt.wantUnsafe, unsafe)
		})
	}
}

func TestClassifierMonotonicInDistance(t *testing.T) {
	cls := newTestClassifier(t)

	prev := -1.0
	for _, km := range []float64{0, 50, 200, 600, 900, 2000, 9000} {
		prob, err := cls.Score(testVector(map[int]float64{FeatGeoDistance: km}))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, prob, prev, "distance %.0f km", km)
		prev = prob
	}
}

func TestClassifierShortVector(t *testing.T) {
	cls := newTestClassifier(t)

	// A vector shorter than the features the trees consult must surface an
	// error, never misroute.
	_, _, err := cls.Classify([]float64{1})
	assert.Error(t, err)
}

func TestLoadClassifierRejectsBadModel(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "{"},
		{name: "no ensembles", body: `{"ensembles": []}`},
		{name: "empty tree", body: `{"ensembles": [{"trees": [{"nodes": []}]}]}`},
		{
			name: "feature out of range",
			body: `{"ensembles": [{"trees": [{"nodes": [
				{"feature": 99, "threshold": 1, "left": 1, "right": 2},
				{"leaf": true, "value": 0},
				{"leaf": true, "value": 1}
			]}]}]}`,
		},
		{
			name: "child out of range",
			body: `{"ensembles": [{"trees": [{"nodes": [
				{"feature": 0, "threshold": 1, "left": 5, "right": 6}
			]}]}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			_, err := LoadClassifier(path, 0.5, zap.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestLoadClassifierMissingFile(t *testing.T) {
	_, err := LoadClassifier(filepath.Join(t.TempDir(), "nope.json"), 0.5, zap.NewNop())
	assert.Error(t, err)
}

func TestTreeEvalCycleBounded(t *testing.T) {
	// Self-referencing split node; validation would reject it, the evaluator
	// must still terminate.
	tree := Tree{Nodes: []Node{{Feature: 0, Threshold: 10, Left: 0, Right: 0}}}

	_, err := tree.eval(make([]float64, NumFeatures))
	assert.ErrorIs(t, err, errBadNode)
}
