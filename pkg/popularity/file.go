package popularity

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/artefact"
)

// Write persists the score map atomically under the popularity envelope.
// Entries are laid out in ascending id order, so equal maps produce equal
// bytes.
func Write(path string, scores map[uint64]float32, logger *zap.Logger) error {
	env := artefact.Envelope{Major: artefact.EnvelopeMajor, Minor: artefact.PopularityMinor}
	err := artefact.WriteFileAtomic(path, func(w io.Writer) error {
		if err := env.Write(w); err != nil {
			return err
		}
		return artefact.WritePopularity(w, scores)
	})
	if err != nil {
		return err
	}
	logger.Info("popularity artefact written",
		zap.String("path", path), zap.Int("pois", len(scores)))
	return nil
}

// Load reads a popularity artefact. Unknown majors are refused by the
// envelope check; newer minors load fine.
func Load(path string, logger *zap.Logger) (map[uint64]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening popularity artefact %s: %w", path, err)
	}
	defer f.Close()
	br := bufio.NewReader(f)

	if _, err := artefact.ReadEnvelope(br); err != nil {
		return nil, err
	}
	scores, err := artefact.ReadPopularity(br)
	if err != nil {
		return nil, err
	}

	logger.Info("popularity artefact loaded",
		zap.String("path", path), zap.Int("pois", len(scores)))
	return scores, nil
}
