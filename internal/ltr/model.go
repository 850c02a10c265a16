package ltr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

const modelFormat = "lambdamart/v1"

// Model is an additive ensemble of regression trees. Leaf values already
// include the learning rate.
type Model struct {
	FeatureNames  []string `json:"feature_names"`
	Trees         []Tree   `json:"trees"`
	Params        Params   `json:"params"`
	BestIteration int      `json:"best_iteration"`
}

type modelFile struct {
	Format string `json:"format"`
	*Model
}

// Predict scores one feature vector. Non-finite inputs are read as 0.
func (m *Model) Predict(features []float64) (float64, error) {
	if len(features) != len(m.FeatureNames) {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, "ltr.Predict",
			"got %d features, model expects %d", len(features), len(m.FeatureNames))
	}
	var score float64
	for _, t := range m.Trees {
		score += t.Predict(features)
	}
	return score, nil
}

func (m *Model) PredictBatch(rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		s, err := m.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func (m *Model) NumTrees() int { return len(m.Trees) }

func (m *Model) MarshalBinary() ([]byte, error) {
	return json.Marshal(modelFile{Format: modelFormat, Model: m})
}

// Version is a short content hash, stable across save and load.
func (m *Model) Version() string {
	data, err := m.MarshalBinary()
	if err != nil {
		return "unknown"
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:6])
}

// Save writes the model as JSON through a temp file and rename.
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(modelFile{Format: modelFormat, Model: m}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating model dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing model: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming model: %w", err)
	}
	return nil
}

func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}
	mf := modelFile{Model: &Model{}}
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "ltr.Load", "decoding %s: %v", path, err)
	}
	if mf.Format != modelFormat {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "ltr.Load", "unsupported model format %q", mf.Format)
	}
	for ti, t := range mf.Trees {
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				continue
			}
			if n.Feature >= len(mf.FeatureNames) || n.Left <= ni || n.Right <= ni ||
				n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return nil, apperrors.Newf(apperrors.ErrInvalidInput, "ltr.Load", "tree %d node %d is malformed", ti, ni)
			}
		}
	}
	return mf.Model, nil
}
