package wikidata

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/wildside/wildside/pkg"
)

// DefaultClaimSelection lists the claim properties captured from the dump.
var DefaultClaimSelection = []string{pkg.HeritagePropertyID}

// Claim is one captured statement target.
type Claim struct {
	PropertyID string
	ValueQID   string
}

// EntityClaims holds everything extracted for one linked entity.
type EntityClaims struct {
	QID          string
	LinkedPoiIDs []uint64
	Claims       []Claim
	Sitelinks    int
}

// ReadLineError reports an I/O fault while streaming the dump. Line numbers
// are 1-based.
type ReadLineError struct {
	Line int
	err  error
}

func (e *ReadLineError) Error() string {
	return fmt.Sprintf("reading wikidata dump at line %d: %v", e.Line, e.err)
}

func (e *ReadLineError) Unwrap() error { return e.err }

// ParseEntityError reports a malformed entity document. Line numbers are
// 1-based.
type ParseEntityError struct {
	Line int
	err  error
}

func (e *ParseEntityError) Error() string {
	return fmt.Sprintf("parsing wikidata entity at line %d: %v", e.Line, e.err)
}

func (e *ParseEntityError) Unwrap() error { return e.err }

// ExtractLinkedEntityClaims streams the decompressed JSON dump one line at a
// time, keeping only entities referenced by links. The dump is never
// materialised; each line's id is probed first and non-linked lines are
// dropped without a full parse. selection names the claim properties to
// capture (nil means DefaultClaimSelection).
func ExtractLinkedEntityClaims(r io.Reader, links PoiEntityLinks, selection []string) ([]EntityClaims, error) {
	if links.Len() == 0 {
		return nil, nil
	}
	if selection == nil {
		selection = DefaultClaimSelection
	}

	reader := bufio.NewReaderSize(r, 1<<20)
	var (
		extracted []EntityClaims
		lineNo    int
	)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, &ReadLineError{Line: lineNo + 1, err: err}
		}
		if len(line) > 0 {
			lineNo++
			if payload, ok := preprocessLine(line); ok {
				claims, perr := processEntityLine(payload, links, selection, lineNo)
				if perr != nil {
					return nil, perr
				}
				if claims != nil {
					extracted = append(extracted, *claims)
				}
			}
		}
		if err == io.EOF {
			break
		}
	}
	return extracted, nil
}

// preprocessLine trims dump framing: the array brackets, padding, and the
// comma separating entity documents.
func preprocessLine(line []byte) ([]byte, bool) {
	trimmed := bytes.TrimSpace(line)
	if isStructuralLine(trimmed) {
		return nil, false
	}
	trimmed = bytes.TrimSpace(bytes.TrimLeft(trimmed, ","))
	trimmed = bytes.TrimSpace(bytes.TrimSuffix(trimmed, []byte(",")))
	if isStructuralLine(trimmed) {
		return nil, false
	}
	return trimmed, true
}

func isStructuralLine(line []byte) bool {
	return len(line) == 0 || bytes.Equal(line, []byte("[")) || bytes.Equal(line, []byte("]"))
}

// probeEntityID pulls the first id field out of the document without a full
// parse. Entity documents open with their own id, so the first match is the
// entity id.
func probeEntityID(payload []byte) string {
	const marker = `"id":`
	i := bytes.Index(payload, []byte(marker))
	if i < 0 {
		return ""
	}
	rest := bytes.TrimLeft(payload[i+len(marker):], " \t")
	if len(rest) == 0 || rest[0] != '"' {
		return ""
	}
	end := bytes.IndexByte(rest[1:], '"')
	if end < 0 {
		return ""
	}
	return string(rest[1 : 1+end])
}

func processEntityLine(payload []byte, links PoiEntityLinks, selection []string, lineNo int) (*EntityClaims, error) {
	if probed := probeEntityID(payload); probed != "" {
		qid, ok := NormaliseWikidataID(probed)
		if !ok || !links.Contains(qid) {
			return nil, nil
		}
	}

	var entity dumpEntity
	if err := json.Unmarshal(payload, &entity); err != nil {
		return nil, &ParseEntityError{Line: lineNo, err: err}
	}
	qid, ok := NormaliseWikidataID(entity.ID)
	if !ok || !links.Contains(qid) {
		return nil, nil
	}

	claims := entity.selectedClaims(selection)
	slices.SortFunc(claims, func(a, b Claim) int {
		if c := strings.Compare(a.PropertyID, b.PropertyID); c != 0 {
			return c
		}
		return strings.Compare(a.ValueQID, b.ValueQID)
	})
	claims = slices.Compact(claims)

	return &EntityClaims{
		QID:          qid,
		LinkedPoiIDs: links.LinkedPoiIDs(qid),
		Claims:       claims,
		Sitelinks:    len(entity.Sitelinks),
	}, nil
}

type dumpEntity struct {
	ID        string                     `json:"id"`
	Claims    map[string][]dumpStatement `json:"claims"`
	Sitelinks map[string]json.RawMessage `json:"sitelinks"`
}

type dumpStatement struct {
	MainSnak dumpSnak `json:"mainsnak"`
}

type dumpSnak struct {
	SnakType  string         `json:"snaktype"`
	DataValue *dumpDataValue `json:"datavalue"`
}

type dumpDataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type dumpEntityValue struct {
	ID        string `json:"id"`
	NumericID int64  `json:"numeric-id"`
}

func (e *dumpEntity) selectedClaims(selection []string) []Claim {
	var out []Claim
	for _, property := range selection {
		for _, statement := range e.Claims[property] {
			target, ok := statement.MainSnak.entityTarget()
			if !ok {
				continue
			}
			out = append(out, Claim{PropertyID: property, ValueQID: target})
		}
	}
	return out
}

func (s dumpSnak) entityTarget() (string, bool) {
	if s.SnakType != "value" || s.DataValue == nil || s.DataValue.Type != "wikibase-entityid" {
		return "", false
	}
	var value dumpEntityValue
	if err := json.Unmarshal(s.DataValue.Value, &value); err != nil {
		return "", false
	}
	raw := value.ID
	if raw == "" && value.NumericID > 0 {
		raw = fmt.Sprintf("Q%d", value.NumericID)
	}
	return NormaliseWikidataID(raw)
}
