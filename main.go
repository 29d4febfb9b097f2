package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/logger"
	"github.com/wildside/wildside/pkg/osmparser"
	"github.com/wildside/wildside/pkg/poidb"
	"github.com/wildside/wildside/pkg/popularity"
	"github.com/wildside/wildside/pkg/spatialindex"
	"github.com/wildside/wildside/pkg/util"
)

// Development pipeline: one extract straight to the poi database plus the
// two artefacts the solver mounts. Wikidata enrichment is the slow,
// network-bound stage, so it stays in cmd/wikidata and runs in between
// when wanted; popularity then just scores zero claims here.

var (
	pbfPath   = flag.String("pbf", "./data/extract.osm.pbf", "openstreetmap pbf extract to ingest")
	dataDir   = flag.String("data", "./data", "output directory for the database and artefacts")
	batchSize = flag.Int("batch", 5000, "poi rows per insert transaction")
)

func main() {
	flag.Parse()

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("pipeline failed", zap.Error(err))
		os.Exit(util.ExitCode(err))
	}
}

func run(log *zap.Logger) error {
	if err := util.ReadConfig(); err != nil {
		return err
	}

	ctx := context.Background()

	parser := osmparser.NewParser(log)
	summary, pois, unresolved, err := parser.Parse(ctx, *pbfPath)
	if err != nil {
		return err
	}
	log.Info("extract scanned",
		zap.Int64("nodes", summary.Nodes),
		zap.Int64("ways", summary.Ways),
		zap.Int("pois", len(pois)),
		zap.Int("unresolvedWays", len(unresolved)))

	db, err := poidb.Open(filepath.Join(*dataDir, pkg.PoiDBFileName))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := poidb.InitialiseSchema(db); err != nil {
		return err
	}
	for start := 0; start < len(pois); start += *batchSize {
		end := min(start+*batchSize, len(pois))
		if err := poidb.UpsertPois(db, pois[start:end]); err != nil {
			return err
		}
	}

	// Both artefacts read the now-complete database and write distinct
	// files, so they build in parallel.
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		scores, err := popularity.Compute(db, popularity.DefaultWeights(), log)
		if err != nil {
			return err
		}
		return popularity.Write(filepath.Join(*dataDir, pkg.PopularityFileName), scores, log)
	})
	g.Go(func() error {
		stored, err := poidb.AllPois(db)
		if err != nil {
			return err
		}
		return spatialindex.Build(stored).Write(filepath.Join(*dataDir, pkg.SpatialIndexFileName), log)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("pipeline finished", zap.Int("pois", len(pois)), zap.String("data", *dataDir))
	return nil
}
