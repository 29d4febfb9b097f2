package main

import (
	"flag"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/logger"
	"github.com/wildside/wildside/pkg/poidb"
	"github.com/wildside/wildside/pkg/popularity"
	"github.com/wildside/wildside/pkg/util"
)

var (
	dbPath  = flag.String("db", "./data/"+pkg.PoiDBFileName, "poi database with wikidata claims")
	outPath = flag.String("out", "./data/"+pkg.PopularityFileName, "popularity artefact to write")
)

func main() {
	flag.Parse()

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("popularity build failed", zap.Error(err))
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

	weights := popularity.DefaultWeights()
	if viper.IsSet("popularity.sitelink_weight") {
		weights.SitelinkWeight = float32(viper.GetFloat64("popularity.sitelink_weight"))
	}
	if viper.IsSet("popularity.unesco_boost") {
		weights.UnescoBoost = float32(viper.GetFloat64("popularity.unesco_boost"))
	}

	scores, err := popularity.Compute(db, weights, log)
	if err != nil {
		return err
	}
	if err := popularity.Write(*outPath, scores, log); err != nil {
		return err
	}

	log.Info("popularity build finished",
		zap.Int("pois", len(scores)),
		zap.String("path", *outPath))
	return nil
}
