package main

import (
	"flag"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/artefact"
	"github.com/wildside/wildside/pkg/logger"
	"github.com/wildside/wildside/pkg/util"
)

var (
	filePath = flag.String("file", "", "artefact to restamp")
	kind     = flag.String("kind", "", "artefact kind: index or popularity (inferred from the file name when empty)")
)

func main() {
	flag.Parse()

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("artefact migration failed", zap.Error(err))
		os.Exit(util.ExitCode(err))
	}
}

func run(log *zap.Logger) error {
	if *filePath == "" {
		return util.WrapErrorf(nil, util.ErrValidation, "-file is required")
	}

	minor, err := targetMinor(*filePath, *kind)
	if err != nil {
		return err
	}

	if err := artefact.RestampMinor(*filePath, minor); err != nil {
		return err
	}

	log.Info("artefact restamped",
		zap.String("file", *filePath),
		zap.Uint16("minor", minor))
	return nil
}

// targetMinor resolves the current minor for the artefact kind, falling back
// to the conventional file suffixes when -kind is not given.
func targetMinor(path, kind string) (uint16, error) {
	switch kind {
	case "index":
		return artefact.SpatialIndexMinor, nil
	case "popularity":
		return artefact.PopularityMinor, nil
	case "":
	default:
		return 0, util.WrapErrorf(nil, util.ErrValidation, "unknown artefact kind %q", kind)
	}

	switch {
	case strings.HasSuffix(path, ".rstar"):
		return artefact.SpatialIndexMinor, nil
	case strings.HasSuffix(path, ".bin"):
		return artefact.PopularityMinor, nil
	}
	return 0, util.WrapErrorf(nil, util.ErrValidation, "cannot infer artefact kind from %q, pass -kind", path)
}
