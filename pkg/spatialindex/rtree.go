package spatialindex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/tidwall/rtree"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/artefact"
	"github.com/wildside/wildside/pkg/datastructure"
)

// Index is an in-memory R-tree over the POI set. Once built it is immutable
// and safe for concurrent queries.
type Index struct {
	tr   *rtree.RTreeG[datastructure.PointOfInterest]
	pois []datastructure.PointOfInterest
}

// Build bulk-loads the tree from a POI slice in one pass. The result is a
// function of the POI set only: two builds from permutations of the same
// slice answer every query identically.
func Build(pois []datastructure.PointOfInterest) *Index {
	sorted := slices.Clone(pois)
	slices.SortFunc(sorted, func(a, b datastructure.PointOfInterest) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	var tr rtree.RTreeG[datastructure.PointOfInterest]
	for _, poi := range sorted {
		point := [2]float64{poi.Lon, poi.Lat}
		tr.Insert(point, point, poi)
	}

	return &Index{tr: &tr, pois: sorted}
}

// Len is the number of indexed POIs.
func (idx *Index) Len() int {
	return len(idx.pois)
}

// Items exposes the indexed POIs in ascending id order. Callers must not
// mutate the result.
func (idx *Index) Items() []datastructure.PointOfInterest {
	return idx.pois
}

// Search returns clones of the POIs whose coordinate lies inside rect,
// boundary inclusive, in ascending id order.
func (idx *Index) Search(rect datastructure.Rect) []datastructure.PointOfInterest {
	var out []datastructure.PointOfInterest
	idx.tr.Search(
		[2]float64{rect.Min.Lon, rect.Min.Lat},
		[2]float64{rect.Max.Lon, rect.Max.Lat},
		func(min, max [2]float64, poi datastructure.PointOfInterest) bool {
			if rect.Contains(poi.Coordinate()) {
				out = append(out, poi.Clone())
			}
			return true
		},
	)

	slices.SortFunc(out, func(a, b datastructure.PointOfInterest) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// Write persists the index artefact (envelope + POI payload) atomically.
func (idx *Index) Write(path string, log *zap.Logger) error {
	log.Info("writing spatial index artefact",
		zap.String("path", path), zap.Int("pois", len(idx.pois)))

	env := artefact.Envelope{Major: artefact.EnvelopeMajor, Minor: artefact.SpatialIndexMinor}
	return artefact.WriteFileAtomic(path, func(w io.Writer) error {
		if err := env.Write(w); err != nil {
			return err
		}
		return artefact.WritePoiSlice(w, idx.pois)
	})
}

// Load reads an index artefact and bulk-loads the tree. The envelope is
// checked (magic, known major); version and payload errors surface to the
// caller untouched so the store can classify them.
func Load(path string, log *zap.Logger) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening spatial index %s: %w", path, err)
	}
	defer f.Close()
	br := bufio.NewReader(f)

	env, err := artefact.ReadEnvelope(br)
	if err != nil {
		return nil, err
	}

	pois, err := artefact.ReadPoiSlice(br)
	if err != nil {
		return nil, err
	}

	log.Info("spatial index loaded",
		zap.String("path", path),
		zap.Uint16("minor", env.Minor),
		zap.Int("pois", len(pois)))

	return Build(pois), nil
}
