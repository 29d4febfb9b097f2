package artefact

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/wildside/wildside/pkg/datastructure"
)

// payload limits: a corrupt length prefix must not turn into a giant
// allocation.
const (
	maxStringLen = 1 << 24
	maxTagCount  = 1 << 16
)

func writeString(w io.Writer, s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("string of %d bytes exceeds payload limit", len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", fmt.Errorf("string length %d exceeds payload limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WritePoiSlice emits the spatial index payload: u64 count, then one record
// per POI (u64 id, f64 lon, f64 lat, u32 tag count, length-prefixed
// key/value pairs). Records are ordered by id and tags by key, so the bytes
// are a pure function of the POI set.
func WritePoiSlice(w io.Writer, pois []datastructure.PointOfInterest) error {
	sorted := slices.Clone(pois)
	slices.SortFunc(sorted, func(a, b datastructure.PointOfInterest) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	if err := binary.Write(w, binary.LittleEndian, uint64(len(sorted))); err != nil {
		return err
	}
	for _, poi := range sorted {
		if err := binary.Write(w, binary.LittleEndian, poi.ID); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, poi.Lon); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, poi.Lat); err != nil {
			return err
		}
		if len(poi.Tags) > maxTagCount {
			return fmt.Errorf("poi %d has %d tags, exceeds payload limit", poi.ID, len(poi.Tags))
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(poi.Tags))); err != nil {
			return err
		}

		keys := make([]string, 0, len(poi.Tags))
		for k := range poi.Tags {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if err := writeString(w, k); err != nil {
				return err
			}
			if err := writeString(w, poi.Tags[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadPoiSlice decodes a spatial index payload.
func ReadPoiSlice(r io.Reader) ([]datastructure.PointOfInterest, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading poi count: %w", err)
	}

	pois := make([]datastructure.PointOfInterest, 0, min(count, 1<<20))
	for i := uint64(0); i < count; i++ {
		var poi datastructure.PointOfInterest
		if err := binary.Read(r, binary.LittleEndian, &poi.ID); err != nil {
			return nil, fmt.Errorf("reading poi %d id: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &poi.Lon); err != nil {
			return nil, fmt.Errorf("reading poi %d lon: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &poi.Lat); err != nil {
			return nil, fmt.Errorf("reading poi %d lat: %w", i, err)
		}

		var ntags uint32
		if err := binary.Read(r, binary.LittleEndian, &ntags); err != nil {
			return nil, fmt.Errorf("reading poi %d tag count: %w", i, err)
		}
		if ntags > maxTagCount {
			return nil, fmt.Errorf("poi %d tag count %d exceeds payload limit", i, ntags)
		}
		if ntags > 0 {
			poi.Tags = make(map[string]string, ntags)
			for t := uint32(0); t < ntags; t++ {
				key, err := readString(r)
				if err != nil {
					return nil, fmt.Errorf("reading poi %d tag key: %w", i, err)
				}
				value, err := readString(r)
				if err != nil {
					return nil, fmt.Errorf("reading poi %d tag value: %w", i, err)
				}
				poi.Tags[key] = value
			}
		}
		pois = append(pois, poi)
	}
	return pois, nil
}

// WritePopularity emits the popularity payload: u64 count then (u64 id,
// f32 score) pairs in ascending id order.
func WritePopularity(w io.Writer, scores map[uint64]float32) error {
	ids := make([]uint64, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if err := binary.Write(w, binary.LittleEndian, uint64(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := binary.Write(w, binary.LittleEndian, id); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, scores[id]); err != nil {
			return err
		}
	}
	return nil
}

// ReadPopularity decodes a popularity payload.
func ReadPopularity(r io.Reader) (map[uint64]float32, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading popularity count: %w", err)
	}

	scores := make(map[uint64]float32, min(count, 1<<20))
	for i := uint64(0); i < count; i++ {
		var id uint64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return nil, fmt.Errorf("reading popularity entry %d id: %w", i, err)
		}
		var score float32
		if err := binary.Read(r, binary.LittleEndian, &score); err != nil {
			return nil, fmt.Errorf("reading popularity entry %d score: %w", i, err)
		}
		scores[id] = score
	}
	return scores, nil
}
