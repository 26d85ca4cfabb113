package risk

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// The classifier is an opaque pre-trained scoring function: two
// independently trained tree ensembles whose probabilities are averaged
// (soft vote), thresholded into a binary safe/unsafe label. The model is a
// JSON document loaded once at process start; a corrupt or missing model is
// fatal at load time, never per request.

//go:embed model.json
var defaultModel []byte

var errBadNode = errors.New("tree node out of range")

// Node is one split or leaf in a decision tree. Split nodes route to Left
// when x[Feature] < Threshold, Right otherwise.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value,omitempty"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) eval(x []float64) (float64, error) {
	idx := 0
	// Bounded by the node count; a cycle in a malformed model cannot spin.
	for steps := 0; steps <= len(t.Nodes); steps++ {
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, errBadNode
		}
		n := t.Nodes[idx]
		if n.Leaf {
			return n.Value, nil
		}
		if n.Feature < 0 || n.Feature >= len(x) {
			return 0, errBadNode
		}
		if x[n.Feature] < n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
	return 0, errBadNode
}

type Ensemble struct {
	Trees []Tree `json:"trees"`
}

func (e *Ensemble) score(x []float64) (float64, error) {
	var sum float64
	for i := range e.Trees {
		v, err := e.Trees[i].eval(x)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(len(e.Trees)), nil
}

type Model struct {
	Ensembles []Ensemble `json:"ensembles"`
}

type Classifier struct {
	model     Model
	threshold float64
	log       *zap.Logger
}

// LoadClassifier reads and validates the ensemble model. An empty path
// selects the embedded default model.
func LoadClassifier(path string, threshold float64, log *zap.Logger) (*Classifier, error) {
	raw := defaultModel
	if path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model file: %w", err)
		}
	}

	var model Model
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model: %w", err)
	}
	if err := validate(&model); err != nil {
		return nil, fmt.Errorf("invalid model: %w", err)
	}

	log.Info("risk model loaded",
		zap.Int("ensembles", len(model.Ensembles)),
		zap.Float64("threshold", threshold))

	return &Classifier{model: model, threshold: threshold, log: log}, nil
}

func validate(m *Model) error {
	if len(m.Ensembles) == 0 {
		return errors.New("no ensembles")
	}
	for i, e := range m.Ensembles {
		if len(e.Trees) == 0 {
			return fmt.Errorf("ensemble %d has no trees", i)
		}
		for j, t := range e.Trees {
			if len(t.Nodes) == 0 {
				return fmt.Errorf("ensemble %d tree %d has no nodes", i, j)
			}
			for k, n := range t.Nodes {
				if n.Leaf {
					continue
				}
				if n.Feature < 0 || n.Feature >= NumFeatures {
					return fmt.Errorf("ensemble %d tree %d node %d: bad feature %d", i, j, k, n.Feature)
				}
				if n.Left < 0 || n.Left >= len(t.Nodes) || n.Right < 0 || n.Right >= len(t.Nodes) {
					return fmt.Errorf("ensemble %d tree %d node %d: child out of range", i, j, k)
				}
			}
		}
	}
	return nil
}

// Score returns the probability that the attempt described by the combined
// feature vector is unsafe, averaged over the ensembles.
func (c *Classifier) Score(vec []float64) (float64, error) {
	var sum float64
	for i := range c.model.Ensembles {
		p, err := c.model.Ensembles[i].score(vec)
		if err != nil {
			return 0, err
		}
		sum += p
	}
	return sum / float64(len(c.model.Ensembles)), nil
}

// Classify maps the score through the configured threshold. unsafe is true
// when the probability meets or exceeds it.
func (c *Classifier) Classify(vec []float64) (unsafe bool, prob float64, err error) {
	prob, err = c.Score(vec)
	if err != nil {
		return false, 0, err
	}
	return prob >= c.threshold, prob, nil
}

// Threshold returns the configured decision threshold.
func (c *Classifier) Threshold() float64 {
	return c.threshold
}
