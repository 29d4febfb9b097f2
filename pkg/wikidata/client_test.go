package wikidata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testArchive = "compressed dump bytes"

func newDumpServer(t *testing.T, declaredSize int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(ManifestPath, func(w http.ResponseWriter, r *http.Request) {
		manifest := fmt.Sprintf(`{
			"jobs": {
				"json": {
					"status": "done",
					"files": {
						"wikidata-20240101-all.json.bz2": {
							"url": "/archive/wikidata-20240101-all.json.bz2",
							"size": %d,
							"sha1": "deadbeef"
						}
					}
				}
			}
		}`, declaredSize)
		w.Write([]byte(manifest))
	})
	mux.HandleFunc("/archive/wikidata-20240101-all.json.bz2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testArchive))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestAcquireDownloadsLatestDump(t *testing.T) {
	server := newDumpServer(t, int64(len(testArchive)))
	dir := t.TempDir()

	log, err := InitialiseDownloadLog(filepath.Join(dir, "downloads.sqlite"))
	require.NoError(t, err)
	defer log.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000}, zap.NewNop())
	report, err := client.Acquire(context.Background(), dir, AcquireOptions{Log: log})
	require.NoError(t, err)

	assert.Equal(t, "wikidata-20240101-all.json.bz2", report.Descriptor.FileName)
	assert.Equal(t, int64(len(testArchive)), report.BytesWritten)

	data, err := os.ReadFile(report.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, testArchive, string(data))

	var count int
	require.NoError(t, log.db.QueryRow(
		`SELECT COUNT(*) FROM downloads WHERE file_name = ? AND sha1 = 'deadbeef'`,
		report.Descriptor.FileName).Scan(&count))
	assert.Equal(t, 1, count)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), "wikidata-etl-")
	}
}

func TestDownloadSizeMismatch(t *testing.T) {
	server := newDumpServer(t, int64(len(testArchive))+5)
	dir := t.TempDir()

	client := NewClient(ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000}, zap.NewNop())
	_, err := client.Acquire(context.Background(), dir, AcquireOptions{})
	require.Error(t, err)

	var mismatch *SizeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, int64(len(testArchive)), mismatch.Actual)
}

func TestDownloadRefusesExistingArchive(t *testing.T) {
	server := newDumpServer(t, int64(len(testArchive)))
	dir := t.TempDir()
	existing := filepath.Join(dir, "wikidata-20240101-all.json.bz2")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	client := NewClient(ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000}, zap.NewNop())

	_, err := client.Acquire(context.Background(), dir, AcquireOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist))

	report, err := client.Acquire(context.Background(), dir, AcquireOptions{Overwrite: true})
	require.NoError(t, err)
	data, err := os.ReadFile(report.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, testArchive, string(data))
}

func TestResolveLatestSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000}, zap.NewNop())
	_, err := client.ResolveLatest(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
}

func TestClientBaseURLSanitised(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "https://example.org/"}, zap.NewNop())
	assert.Equal(t, "https://example.org"+ManifestPath, client.ManifestURL())

	client = NewClient(ClientConfig{}, zap.NewNop())
	assert.Equal(t, DefaultBaseURL+ManifestPath, client.ManifestURL())
}

func TestClientSendsUserAgent(t *testing.T) {
	var seen string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("User-Agent")
		w.Write([]byte(`{"jobs":{}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, RequestsPerSecond: 1000}, zap.NewNop())
	_, err := client.ResolveLatest(context.Background())
	require.Error(t, err)

	var missing *MissingDumpError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, DefaultUserAgent, seen)
}
