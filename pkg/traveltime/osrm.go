package traveltime

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/wildside/wildside/pkg/datastructure"
)

// DefaultUserAgent identifies the routing adapter to OSRM operators.
const DefaultUserAgent = "wildside-routing/0.1"

const defaultTimeout = 30 * time.Second

// OSRMConfig configures the table-service adapter. Zero values fall back
// to the defaults.
type OSRMConfig struct {
	// BaseURL of the OSRM instance, e.g. "http://localhost:5000".
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// OSRMProvider fetches walking-time matrices from OSRM's table service with
// a single GET per call. Safe for concurrent use.
type OSRMProvider struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	timeout    time.Duration
	logger     *zap.Logger
}

func NewOSRMProvider(cfg OSRMConfig, logger *zap.Logger) *OSRMProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &OSRMProvider{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  userAgent,
		timeout:    timeout,
		logger:     logger,
	}
}

// tableResponse is the wire shape of the OSRM table service. Durations are
// seconds; a null cell means no route exists between the pair.
type tableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Durations [][]*float64 `json:"durations"`
}

func (p *OSRMProvider) GetTravelTimeMatrix(ctx context.Context, pois []datastructure.PointOfInterest) (datastructure.TravelTimeMatrix, error) {
	if len(pois) == 0 {
		return nil, ErrEmptyInput
	}
	url := p.tableURL(pois)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", p.userAgent)

	started := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, url, p.timeout)
		}
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{URL: url, Status: resp.StatusCode}
	}

	var table tableResponse
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, url, p.timeout)
		}
		return nil, &ParseError{Reason: "decoding table response", Err: err}
	}

	matrix, err := matrixFromTable(table, len(pois))
	if err != nil {
		return nil, err
	}

	p.logger.Debug("travel time matrix fetched",
		zap.Int("pois", len(pois)),
		zap.Duration("elapsed", time.Since(started)))
	return matrix, nil
}

// tableURL renders {base}/table/v1/walking/{lon},{lat};{lon},{lat};…
func (p *OSRMProvider) tableURL(pois []datastructure.PointOfInterest) string {
	var sb strings.Builder
	sb.WriteString(p.baseURL)
	sb.WriteString("/table/v1/walking/")
	for i, poi := range pois {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.FormatFloat(poi.Lon, 'f', -1, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(poi.Lat, 'f', -1, 64))
	}
	return sb.String()
}

func matrixFromTable(table tableResponse, n int) (datastructure.TravelTimeMatrix, error) {
	if table.Code != "Ok" {
		return nil, &ServiceError{Code: table.Code, Message: table.Message}
	}
	if table.Durations == nil {
		return nil, &ParseError{Reason: "response missing durations"}
	}
	if len(table.Durations) != n {
		return nil, &ParseError{
			Reason: fmt.Sprintf("expected %d duration rows, got %d", n, len(table.Durations)),
		}
	}

	matrix := datastructure.NewTravelTimeMatrix(n)
	for i, row := range table.Durations {
		if len(row) != n {
			return nil, &ParseError{
				Reason: fmt.Sprintf("duration row %d has %d entries, want %d", i, len(row), n),
			}
		}
		for j, cell := range row {
			matrix[i][j] = durationFromSeconds(cell)
		}
	}
	return matrix, nil
}

// durationFromSeconds maps null, negative, non-finite and overflowing
// values to MaxDuration, marking the pair unreachable.
func durationFromSeconds(cell *float64) time.Duration {
	if cell == nil {
		return datastructure.MaxDuration
	}
	v := *cell
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return datastructure.MaxDuration
	}
	if v >= float64(math.MaxInt64)/float64(time.Second) {
		return datastructure.MaxDuration
	}
	return time.Duration(v * float64(time.Second))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
