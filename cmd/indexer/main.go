package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/logger"
	"github.com/wildside/wildside/pkg/poidb"
	"github.com/wildside/wildside/pkg/spatialindex"
	"github.com/wildside/wildside/pkg/util"
)

var (
	dbPath    = flag.String("db", "./data/"+pkg.PoiDBFileName, "poi database to index")
	indexPath = flag.String("out", "./data/"+pkg.SpatialIndexFileName, "spatial index artefact to write")
)

func main() {
	flag.Parse()

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("spatial index build failed", zap.Error(err))
		os.Exit(util.ExitCode(err))
	}
}

func run(log *zap.Logger) error {
	if err := util.ReadConfig(); err != nil {
		return err
	}

	db, err := poidb.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := poidb.CheckSchemaVersion(db); err != nil {
		return err
	}

	pois, err := poidb.AllPois(db)
	if err != nil {
		return err
	}

	index := spatialindex.Build(pois)
	if err := index.Write(*indexPath, log); err != nil {
		return err
	}

	log.Info("spatial index written",
		zap.Int("pois", index.Len()),
		zap.String("path", *indexPath))
	return nil
}
