package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"slices"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	json "github.com/goccy/go-json"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg"
	"github.com/wildside/wildside/pkg/datastructure"
	"github.com/wildside/wildside/pkg/logger"
	"github.com/wildside/wildside/pkg/poistore"
	"github.com/wildside/wildside/pkg/scorer"
	"github.com/wildside/wildside/pkg/solver"
	"github.com/wildside/wildside/pkg/traveltime"
	"github.com/wildside/wildside/pkg/util"
)

var (
	requestPath    = flag.String("request", "", "solve request JSON file")
	dbPath         = flag.String("db", "./data/"+pkg.PoiDBFileName, "poi database")
	indexPath      = flag.String("index", "./data/"+pkg.SpatialIndexFileName, "spatial index artefact")
	popularityPath = flag.String("popularity", "./data/"+pkg.PopularityFileName, "popularity artefact")
	osrmURL        = flag.String("osrm", "http://localhost:5000", "osrm base url (table service, foot profile)")
)

func main() {
	flag.Parse()

	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("solve failed", zap.Error(err))
		os.Exit(util.ExitCode(err))
	}
}

func run(log *zap.Logger) error {
	if err := util.ReadConfig(); err != nil {
		return err
	}

	if *requestPath == "" {
		return util.WrapErrorf(nil, util.ErrValidation, "-request is required")
	}

	request, err := readRequest(*requestPath)
	if err != nil {
		return err
	}

	store, err := poistore.Open(*dbPath, *indexPath, log)
	if err != nil {
		return err
	}

	claims, err := scorer.OpenClaimScorer(*dbPath, *popularityPath, log)
	if err != nil {
		return err
	}
	defer claims.Close()

	provider := traveltime.NewOSRMProvider(traveltime.OSRMConfig{
		BaseURL:   *osrmURL,
		Timeout:   viper.GetDuration("osrm.timeout"),
		UserAgent: viper.GetString("osrm.user_agent"),
	}, log)

	response, err := solver.New(store, provider, claims, log).Solve(context.Background(), request)
	if err != nil {
		var invalid *solver.InvalidRequestError
		if errors.As(err, &invalid) {
			return util.WrapErrorf(err, util.ErrValidation, "solve request rejected")
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(response)
}

type coordinateDTO struct {
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
}

type solveRequestDTO struct {
	Start           coordinateDTO      `json:"start"`
	End             *coordinateDTO     `json:"end"`
	DurationMinutes uint16             `json:"duration_minutes" validate:"required,min=1"`
	Interests       map[string]float32 `json:"interests" validate:"dive,min=0,max=1"`
	Seed            uint64             `json:"seed"`
	MaxNodes        *uint16            `json:"max_nodes" validate:"omitempty,min=1"`
}

func readRequest(path string) (*datastructure.SolveRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "reading solve request %s", path)
	}

	var dto solveRequestDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, util.WrapErrorf(err, util.ErrParse, "decoding solve request %s", path)
	}

	validate := validator.New()
	if err := validate.Struct(dto); err != nil {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
		vv := translateError(err, trans)
		return nil, util.WrapErrorf(errors.Join(vv...), util.ErrValidation, "invalid solve request")
	}

	request, err := dto.toRequest()
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrValidation, "invalid solve request")
	}
	return request, nil
}

// toRequest maps the wire DTO onto the library request. Interest names go
// through ParseTheme in sorted order so the first bad theme reported is
// stable across runs.
func (dto *solveRequestDTO) toRequest() (*datastructure.SolveRequest, error) {
	request := &datastructure.SolveRequest{
		Start:           datastructure.NewCoordinate(dto.Start.Lon, dto.Start.Lat),
		DurationMinutes: dto.DurationMinutes,
		Interests:       datastructure.NewInterestProfile(),
		Seed:            dto.Seed,
		MaxNodes:        dto.MaxNodes,
	}
	if dto.End != nil {
		end := datastructure.NewCoordinate(dto.End.Lon, dto.End.Lat)
		request.End = &end
	}

	names := make([]string, 0, len(dto.Interests))
	for name := range dto.Interests {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		theme, err := datastructure.ParseTheme(name)
		if err != nil {
			return nil, err
		}
		if err := request.Interests.SetWeight(theme, dto.Interests[name]); err != nil {
			return nil, err
		}
	}
	return request, nil
}

func translateError(err error, trans ut.Translator) []error {
	if err == nil {
		return nil
	}
	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		out := make([]error, 0, len(validatorErrs))
		for _, e := range validatorErrs {
			out = append(out, errors.New(e.Translate(trans)))
		}
		return out
	}
	return []error{err}
}
