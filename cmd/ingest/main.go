package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/logger"
	"github.com/wildside/wildside/pkg/osmparser"
	"github.com/wildside/wildside/pkg/poidb"
	"github.com/wildside/wildside/pkg/util"
)

var (
	pbfPath   = flag.String("pbf", "./data/extract.osm.pbf", "openstreetmap pbf extract to ingest")
	dbPath    = flag.String("db", "./data/"+pkg.PoiDBFileName, "poi database to create or update")
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
		log.Error("openstreetmap ingest failed", zap.Error(err))
		os.Exit(util.ExitCode(err))
	}
}

func run(log *zap.Logger) error {
	if err := util.ReadConfig(); err != nil {
		return err
	}

	parser := osmparser.NewParser(log)
	summary, pois, unresolved, err := parser.Parse(context.Background(), *pbfPath)
	if err != nil {
		return err
	}

	db, err := poidb.Open(*dbPath)
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
		log.Sugar().Infof("persisted pois: %d/%d...", end, len(pois))
	}

	total, err := poidb.CountPois(db)
	if err != nil {
		return err
	}

	log.Info("openstreetmap ingest finished",
		zap.Int64("nodes", summary.Nodes),
		zap.Int64("ways", summary.Ways),
		zap.Int64("relations", summary.Relations),
		zap.Int("pois", len(pois)),
		zap.Int("unresolvedWays", len(unresolved)),
		zap.Int("poisInDb", total),
		zap.String("db", *dbPath))
	return nil
}
