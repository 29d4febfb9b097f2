package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/dsnet/compress/bzip2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/logger"
	"github.com/wildside/wildside/pkg/poidb"
	"github.com/wildside/wildside/pkg/util"
	"github.com/wildside/wildside/pkg/wikidata"
)

var (
	dbPath    = flag.String("db", "./data/"+pkg.PoiDBFileName, "poi database to link and enrich")
	outDir    = flag.String("out", "./data", "directory for downloaded dump archives")
	mirror    = flag.String("mirror", wikidata.DefaultBaseURL, "wikidata dump mirror base url")
	dumpPath  = flag.String("dump", "", "already-downloaded dump archive; skips the download")
	overwrite = flag.Bool("overwrite", false, "overwrite an existing archive")
)

func main() {
	flag.Parse()

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("wikidata enrichment failed", zap.Error(err))
		os.Exit(util.ExitCode(err))
	}
}

func run(log *zap.Logger) error {
	if err := util.ReadConfig(); err != nil {
		return err
	}
	ctx := context.Background()

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
	links := wikidata.BuildPoiEntityLinks(pois, log)
	if links.Len() == 0 {
		log.Warn("no wikidata-linked pois in the database; nothing to extract")
		return nil
	}

	archive := *dumpPath
	if archive == "" {
		archive, err = download(ctx, log)
		if err != nil {
			return err
		}
	}

	f, err := os.Open(archive)
	if err != nil {
		return util.WrapErrorf(err, util.ErrIO, "opening dump archive %s", archive)
	}
	defer f.Close()

	stream, err := bzip2.NewReader(f, nil)
	if err != nil {
		return util.WrapErrorf(err, util.ErrParse, "opening bzip2 stream %s", archive)
	}
	defer stream.Close()

	claims, err := wikidata.ExtractLinkedEntityClaims(stream, links, wikidata.DefaultClaimSelection)
	if err != nil {
		return err
	}

	if err := wikidata.PersistClaims(db, links, claims); err != nil {
		return err
	}

	log.Info("wikidata claims persisted",
		zap.Int("linkedEntities", links.Len()),
		zap.Int("entitiesWithClaims", len(claims)),
		zap.String("archive", archive))
	return nil
}

// download resolves the latest *-all.json.bz2 from the mirror's status
// manifest and streams it into the output directory, recording an audit
// row per completed acquisition.
func download(ctx context.Context, log *zap.Logger) (string, error) {
	cfg := wikidata.ClientConfig{BaseURL: *mirror}
	if viper.IsSet("wikidata.user_agent") {
		cfg.UserAgent = viper.GetString("wikidata.user_agent")
	}
	if viper.IsSet("wikidata.requests_per_second") {
		cfg.RequestsPerSecond = viper.GetFloat64("wikidata.requests_per_second")
	}
	client := wikidata.NewClient(cfg, log)

	auditLog, err := wikidata.InitialiseDownloadLog(filepath.Join(*outDir, "downloads.db"))
	if err != nil {
		return "", err
	}
	defer auditLog.Close()

	report, err := client.Acquire(ctx, *outDir, wikidata.AcquireOptions{
		Log:       auditLog,
		Overwrite: *overwrite,
	})
	if err != nil {
		return "", err
	}
	return report.OutputPath, nil
}
