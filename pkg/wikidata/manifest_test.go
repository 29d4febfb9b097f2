package wikidata

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectDumpPicksLatestFinished(t *testing.T) {
	manifest := `{
		"jobs": {
			"json": {
				"status": "done",
				"files": {
					"wikidata-20240101-all.json.bz2": {"url": "/a/wikidata-20240101-all.json.bz2", "size": 10},
					"wikidata-20240201-all.json.bz2": {"url": "/a/wikidata-20240201-all.json.bz2", "size": 20, "sha1": "abc"}
				}
			},
			"stale": {
				"status": "waiting",
				"files": {
					"wikidata-20240301-all.json.bz2": {"url": "/a/wikidata-20240301-all.json.bz2"}
				}
			},
			"other": {
				"status": "done",
				"files": {
					"wikidata-20240301-truthy.nt.bz2": {"url": "/a/wikidata-20240301-truthy.nt.bz2"}
				}
			}
		}
	}`

	descriptor, err := SelectDump(strings.NewReader(manifest), "https://dumps.example.org", "https://dumps.example.org/status")
	require.NoError(t, err)

	assert.Equal(t, "wikidata-20240201-all.json.bz2", descriptor.FileName)
	assert.Equal(t, "https://dumps.example.org/a/wikidata-20240201-all.json.bz2", descriptor.URL)
	assert.Equal(t, int64(20), descriptor.Size)
	assert.Equal(t, "abc", descriptor.SHA1)
}

func TestSelectDumpKeepsAbsoluteURLs(t *testing.T) {
	manifest := `{
		"jobs": {
			"json": {
				"status": "DONE",
				"files": {
					"wikidata-20240101-all.json.bz2": {"url": "https://mirror.example.net/d.json.bz2"}
				}
			}
		}
	}`

	descriptor, err := SelectDump(strings.NewReader(manifest), "https://dumps.example.org", "u")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.net/d.json.bz2", descriptor.URL)
}

func TestSelectDumpMissing(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"no jobs", `{"jobs": {}}`},
		{"job not done", `{"jobs": {"json": {"status": "running", "files": {"x-all.json.bz2": {"url": "/x"}}}}}`},
		{"wrong suffix", `{"jobs": {"json": {"status": "done", "files": {"x-truthy.nt.bz2": {"url": "/x"}}}}}`},
		{"file without url", `{"jobs": {"json": {"status": "done", "files": {"x-all.json.bz2": {}}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectDump(strings.NewReader(tt.manifest), "https://dumps.example.org", "https://dumps.example.org/status")
			var missing *MissingDumpError
			require.True(t, errors.As(err, &missing))
			assert.Equal(t, "https://dumps.example.org/status", missing.URL)
		})
	}
}

func TestSelectDumpMalformedManifest(t *testing.T) {
	_, err := SelectDump(strings.NewReader("{"), "https://dumps.example.org", "u")
	require.Error(t, err)

	var missing *MissingDumpError
	assert.False(t, errors.As(err, &missing))
}
