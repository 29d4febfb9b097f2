package wikidata

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/wildside/wildside/pkg/util"
)

const (
	// ManifestPath locates the dump status document under the base URL.
	ManifestPath = "/wikidatawiki/entities/dumpstatus.json"

	dumpSuffix = "-all.json.bz2"
)

// Descriptor identifies one downloadable dump archive from the manifest.
// Size 0 and SHA1 "" mean the manifest omitted them.
type Descriptor struct {
	FileName string
	URL      string
	Size     int64
	SHA1     string
}

// MissingDumpError reports a manifest with no finished full JSON dump.
type MissingDumpError struct {
	URL string
}

func (e *MissingDumpError) Error() string {
	return fmt.Sprintf("no completed *%s dump listed in manifest %s", dumpSuffix, e.URL)
}

type manifest struct {
	Jobs map[string]manifestJob `json:"jobs"`
}

type manifestJob struct {
	Status string                  `json:"status"`
	Files  map[string]manifestFile `json:"files"`
}

type manifestFile struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
	SHA1 string `json:"sha1"`
}

// SelectDump picks the most recent finished full JSON dump from a status
// manifest. File names sort lexicographically by dump date, so the maximum
// name wins. manifestURL is reported in errors only.
func SelectDump(r io.Reader, baseURL, manifestURL string) (Descriptor, error) {
	var status manifest
	if err := json.NewDecoder(r).Decode(&status); err != nil {
		return Descriptor{}, util.WrapErrorf(err, util.ErrParse, "decoding dump manifest %s", manifestURL)
	}

	var (
		best  Descriptor
		found bool
	)
	for _, job := range status.Jobs {
		if !strings.EqualFold(job.Status, "done") {
			continue
		}
		for name, file := range job.Files {
			if !strings.HasSuffix(name, dumpSuffix) || file.URL == "" {
				continue
			}
			resolved, err := resolveURL(baseURL, file.URL)
			if err != nil {
				continue
			}
			if !found || name > best.FileName {
				best = Descriptor{FileName: name, URL: resolved, Size: file.Size, SHA1: file.SHA1}
				found = true
			}
		}
	}
	if !found {
		return Descriptor{}, &MissingDumpError{URL: manifestURL}
	}
	return best, nil
}

func resolveURL(baseURL, ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return "", err
	}
	return resolved.String(), nil
}
