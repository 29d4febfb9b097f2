package wikidata

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wildside/wildside/pkg/util"
)

// DefaultUserAgent identifies this ETL to the dump mirror.
const DefaultUserAgent = "wildside-wikidata-etl/0.1"

// DefaultBaseURL is the canonical Wikimedia dump host.
const DefaultBaseURL = "https://dumps.wikimedia.org"

const (
	defaultManifestTimeout = 15 * time.Second
	defaultRequestsPerSec  = 1.0
)

// ClientConfig tunes the dump mirror client. Zero values fall back to the
// package defaults.
type ClientConfig struct {
	BaseURL           string
	UserAgent         string
	ManifestTimeout   time.Duration
	RequestsPerSecond float64
}

// Client talks to a Wikimedia dump mirror: it resolves the latest archive
// from the status manifest and streams archives to disk. Requests share a
// politeness rate limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string

	manifestTimeout time.Duration
	limiter         *rate.Limiter
	logger          *zap.Logger
}

// SizeMismatchError reports a download whose byte count disagrees with the
// manifest.
type SizeMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("dump download wrote %d bytes, manifest declared %d", e.Actual, e.Expected)
}

// HTTPError reports a non-2xx response from the mirror.
type HTTPError struct {
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s returned status %d", e.URL, e.Status)
}

// Report describes one completed acquisition.
type Report struct {
	Descriptor   Descriptor
	BytesWritten int64
	OutputPath   string
}

// AcquireOptions control Acquire side effects.
type AcquireOptions struct {
	// Log, when set, records an audit row per completed download.
	Log *DownloadLog
	// Overwrite truncates an existing archive instead of refusing.
	Overwrite bool
}

// NewClient builds a mirror client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	manifestTimeout := cfg.ManifestTimeout
	if manifestTimeout <= 0 {
		manifestTimeout = defaultManifestTimeout
	}
	perSec := cfg.RequestsPerSecond
	if perSec <= 0 {
		perSec = defaultRequestsPerSec
	}
	baseURL := trimTrailingSlash(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:      &http.Client{},
		baseURL:         baseURL,
		userAgent:       userAgent,
		manifestTimeout: manifestTimeout,
		limiter:         rate.NewLimiter(rate.Limit(perSec), 1),
		logger:          logger,
	}
}

// ManifestURL is the fully resolved status document location.
func (c *Client) ManifestURL() string {
	return c.baseURL + ManifestPath
}

// ResolveLatest fetches the status manifest and picks the newest finished
// full JSON dump.
func (c *Client) ResolveLatest(ctx context.Context) (Descriptor, error) {
	manifestURL := c.ManifestURL()

	ctx, cancel := context.WithTimeout(ctx, c.manifestTimeout)
	defer cancel()

	body, err := c.get(ctx, manifestURL)
	if err != nil {
		return Descriptor{}, err
	}
	defer body.Close()

	descriptor, err := SelectDump(body, c.baseURL, manifestURL)
	if err != nil {
		return Descriptor{}, err
	}
	c.logger.Info("resolved latest wikidata dump",
		zap.String("file", descriptor.FileName),
		zap.Int64("size", descriptor.Size))
	return descriptor, nil
}

// Download streams the archive described by descriptor to outputPath,
// writing through a temp file in the same directory and renaming on success.
// A manifest size disagreement is reported after the rename so the bytes are
// kept for inspection.
func (c *Client) Download(ctx context.Context, descriptor Descriptor, outputPath string, opts AcquireOptions) (Report, error) {
	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Report{}, util.WrapErrorf(err, util.ErrIO, "creating dump directory %s", dir)
		}
	}
	if !opts.Overwrite {
		if _, err := os.Stat(outputPath); err == nil {
			return Report{}, util.WrapErrorf(os.ErrExist, util.ErrIO, "dump archive %s already exists", outputPath)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), "wikidata-etl-*")
	if err != nil {
		return Report{}, util.WrapErrorf(err, util.ErrIO, "creating temp archive for %s", outputPath)
	}
	defer os.Remove(tmp.Name())

	written, err := c.streamArchive(ctx, descriptor.URL, tmp)
	if err != nil {
		tmp.Close()
		return Report{}, err
	}
	if err := tmp.Close(); err != nil {
		return Report{}, util.WrapErrorf(err, util.ErrIO, "closing temp archive for %s", outputPath)
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		return Report{}, util.WrapErrorf(err, util.ErrIO, "renaming dump archive to %s", outputPath)
	}

	if descriptor.Size > 0 && descriptor.Size != written {
		return Report{}, util.WrapErrorf(
			&SizeMismatchError{Expected: descriptor.Size, Actual: written},
			util.ErrIntegrity, "verifying dump archive %s", outputPath)
	}

	report := Report{Descriptor: descriptor, BytesWritten: written, OutputPath: outputPath}
	if opts.Log != nil {
		if err := opts.Log.Record(report); err != nil {
			return Report{}, err
		}
	}
	c.logger.Info("wikidata dump downloaded",
		zap.String("file", descriptor.FileName),
		zap.Int64("bytes", written),
		zap.String("path", outputPath))
	return report, nil
}

// Acquire resolves the latest dump and downloads it into outDir under its
// manifest file name.
func (c *Client) Acquire(ctx context.Context, outDir string, opts AcquireOptions) (Report, error) {
	descriptor, err := c.ResolveLatest(ctx)
	if err != nil {
		return Report{}, err
	}
	return c.Download(ctx, descriptor, filepath.Join(outDir, descriptor.FileName), opts)
}

func (c *Client) streamArchive(ctx context.Context, url string, w io.Writer) (int64, error) {
	body, err := c.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	buffered := bufio.NewWriterSize(w, 1<<20)
	written, err := io.Copy(buffered, body)
	if err != nil {
		return written, util.WrapErrorf(err, util.ErrIO, "streaming dump archive %s", url)
	}
	if err := buffered.Flush(); err != nil {
		return written, util.WrapErrorf(err, util.ErrIO, "flushing dump archive")
	}
	return written, nil
}

func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "waiting on mirror rate limit")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "building request for %s", url)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "requesting %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, util.WrapErrorf(&HTTPError{URL: url, Status: resp.StatusCode},
			util.ErrIO, "requesting %s", url)
	}
	return resp.Body, nil
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
