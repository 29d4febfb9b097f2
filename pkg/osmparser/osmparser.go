// Package osmparser extracts points of interest from an OpenStreetMap PBF
// extract. The file is scanned twice: the first pass folds elements into
// per-worker accumulators that merge associatively, the second resolves
// way geometry anchors from node locations.
package osmparser

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/util"
)

// RelevancePredicate decides whether an element's tags make it a POI.
type RelevancePredicate func(tags map[string]string) bool

// DefaultRelevance keeps elements carrying a historic or tourism tag key.
func DefaultRelevance(tags map[string]string) bool {
	if _, ok := tags["historic"]; ok {
		return true
	}
	_, ok := tags["tourism"]
	return ok
}

// UnresolvedWayNode identifies a way dropped because none of its node refs
// appeared in the file; NodeID is the first ref, the anchor that was
// expected.
type UnresolvedWayNode struct {
	WayID  int64
	NodeID int64
}

// Summary counts every element scanned. Bounds is the bounding rectangle
// of all in-bounds node coordinates and stays zero for a file without any.
type Summary struct {
	Nodes     int64
	Ways      int64
	Relations int64
	Bounds    datastructure.Rect
}

type Parser struct {
	relevant RelevancePredicate
	procs    int
	logger   *zap.Logger
}

func NewParser(logger *zap.Logger) *Parser {
	return &Parser{
		relevant: DefaultRelevance,
		procs:    runtime.NumCPU(),
		logger:   logger,
	}
}

func (p *Parser) SetRelevancePredicate(relevant RelevancePredicate) {
	p.relevant = relevant
}

// Parse scans the PBF at mapFile and returns the ingest summary, the POIs
// sorted by id ascending and the ways dropped for lack of a geometry
// anchor. Open and decode failures abort; per-element issues are logged
// and skipped, except source ids overflowing the 62-bit id space, which
// fail the ingest.
func (p *Parser) Parse(ctx context.Context, mapFile string) (Summary, []datastructure.PointOfInterest, []UnresolvedWayNode, error) {
	f, err := os.Open(mapFile)
	if err != nil {
		return Summary{}, nil, nil, util.WrapErrorf(err, util.ErrIO, "opening %s", mapFile)
	}
	defer f.Close()

	acc := newAccumulator(p.relevant, p.logger)

	p.logger.Info("scanning openstreetmap pbf", zap.String("file", mapFile))
	if err := p.scanElements(ctx, f, acc); err != nil {
		return Summary{}, nil, nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return Summary{}, nil, nil, util.WrapErrorf(err, util.ErrIO, "rewinding %s", mapFile)
	}
	if err := p.scanAnchors(ctx, f, acc); err != nil {
		return Summary{}, nil, nil, err
	}

	summary, pois, unresolved := acc.resolve()
	p.logger.Info("openstreetmap ingest finished",
		zap.Int64("nodes", summary.Nodes),
		zap.Int64("ways", summary.Ways),
		zap.Int64("relations", summary.Relations),
		zap.Int("pois", len(pois)),
		zap.Int("unresolvedWays", len(unresolved)))
	return summary, pois, unresolved, nil
}

// scanElements is the first pass: a pool of accumulators folds node POIs,
// way candidates and element counts off a shared object stream, and the
// parts are merged into acc in fixed order once the stream drains.
// combine is associative, so the worker count never changes the result.
func (p *Parser) scanElements(ctx context.Context, f *os.File, acc *accumulator) error {
	scanner := osmpbf.New(ctx, f, p.procs)
	defer scanner.Close()

	workers := p.procs
	if workers < 1 {
		workers = 1
	}
	parts := make([]*accumulator, workers)
	objects := make(chan osm.Object, workers*64)

	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		part := newAccumulator(p.relevant, p.logger)
		parts[i] = part
		g.Go(func() error {
			return foldObjects(part, objects, f.Name())
		})
	}
	g.Go(func() error {
		defer close(objects)
		count := int64(0)
		for scanner.Scan() {
			count++
			if count%500000 == 0 {
				p.logger.Sugar().Infof("scanning openstreetmap elements: %d...", count)
			}
			select {
			case objects <- scanner.Object():
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return util.WrapErrorf(err, util.ErrParse, "decoding %s", f.Name())
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, part := range parts {
		acc.combine(part)
	}
	return nil
}

func foldObjects(part *accumulator, objects <-chan osm.Object, name string) error {
	for o := range objects {
		var err error
		switch o.ObjectID().Type() {
		case osm.TypeNode:
			err = part.addNode(o.(*osm.Node))
		case osm.TypeWay:
			err = part.addWay(o.(*osm.Way))
		case osm.TypeRelation:
			part.addRelation(o.(*osm.Relation))
		}
		if err != nil {
			return util.WrapErrorf(err, util.ErrValidation, "scanning %s", name)
		}
	}
	return nil
}

// scanAnchors is the second pass: locations for the node refs candidate
// ways recorded. Skipped entirely when no way needs resolving.
func (p *Parser) scanAnchors(ctx context.Context, f *os.File, acc *accumulator) error {
	if len(acc.needed) == 0 {
		return nil
	}

	scanner := osmpbf.New(ctx, f, p.procs)
	defer scanner.Close()
	scanner.SkipWays = true
	scanner.SkipRelations = true

	count := int64(0)
	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if (count+1)%500000 == 0 {
			p.logger.Sugar().Infof("resolving way anchors: %d nodes...", count+1)
		}
		count++
		acc.captureCoord(node)
	}
	if err := scanner.Err(); err != nil {
		return util.WrapErrorf(err, util.ErrParse, "decoding %s", f.Name())
	}
	return nil
}
