package artefact

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildside/wildside/pkg/datastructure"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := Envelope{Major: EnvelopeMajor, Minor: SpatialIndexMinor, Flags: 0}

	var buf bytes.Buffer
	require.NoError(t, env.Write(&buf))
	assert.Equal(t, []byte(Magic), buf.Bytes()[:4])

	got, err := ReadEnvelope(&buf)
	require.NoError(t, err)
	assert.Equal(t, env, got)
}

func TestReadEnvelopeRejectsBadMagic(t *testing.T) {
	_, err := ReadEnvelope(bytes.NewReader([]byte("NOPE\x01\x00\x02\x00\x00")))

	var invalid *InvalidMagicError
	require.True(t, errors.As(err, &invalid))
}

func TestReadEnvelopeRejectsUnknownMajor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Envelope{Major: 9, Minor: 0}.Write(&buf))

	_, err := ReadEnvelope(&buf)
	var unsupported *UnsupportedVersionError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, uint16(9), unsupported.Major)
}

func TestReadEnvelopeAcceptsNewerMinor(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Envelope{Major: EnvelopeMajor, Minor: SpatialIndexMinor + 3}.Write(&buf))

	env, err := ReadEnvelope(&buf)
	require.NoError(t, err)
	assert.Equal(t, SpatialIndexMinor+3, env.Minor)
}

func testPois() []datastructure.PointOfInterest {
	return []datastructure.PointOfInterest{
		datastructure.NewPointOfInterest(5, 110.5, -7.5, map[string]string{"tourism": "museum", "name": "Museum B"}),
		datastructure.NewPointOfInterest(1, 110.1, -7.1, map[string]string{"historic": "fort"}),
		datastructure.NewPointOfInterest(3, 110.3, -7.3, nil),
	}
}

func TestPoiSliceRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePoiSlice(&buf, testPois()))

	decoded, err := ReadPoiSlice(&buf)
	require.NoError(t, err)

	require.Len(t, decoded, 3)
	// writer sorts by id
	assert.Equal(t, uint64(1), decoded[0].ID)
	assert.Equal(t, uint64(3), decoded[1].ID)
	assert.Equal(t, uint64(5), decoded[2].ID)
	assert.Equal(t, "fort", decoded[0].Tags["historic"])
	assert.Equal(t, "Museum B", decoded[2].Tags["name"])
	assert.Nil(t, decoded[1].Tags)
}

func TestPoiSliceBytesAreOrderIndependent(t *testing.T) {
	pois := testPois()

	var a, b bytes.Buffer
	require.NoError(t, WritePoiSlice(&a, pois))

	reversed := []datastructure.PointOfInterest{pois[2], pois[0], pois[1]}
	require.NoError(t, WritePoiSlice(&b, reversed))

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestPopularityRoundTrip(t *testing.T) {
	scores := map[uint64]float32{10: 0.875, 40: 1.0, 3: 0.0}

	var buf bytes.Buffer
	require.NoError(t, WritePopularity(&buf, scores))

	decoded, err := ReadPopularity(&buf)
	require.NoError(t, err)
	assert.Equal(t, scores, decoded)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "artefacts", "popularity.bin")

	require.NoError(t, WriteFileAtomic(path, func(w io.Writer) error {
		if err := (Envelope{Major: EnvelopeMajor, Minor: PopularityMinor}).Write(w); err != nil {
			return err
		}
		return WritePopularity(w, map[uint64]float32{7: 0.5})
	}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	env, err := ReadEnvelope(f)
	require.NoError(t, err)
	assert.Equal(t, PopularityMinor, env.Minor)

	scores, err := ReadPopularity(f)
	require.NoError(t, err)
	assert.Equal(t, map[uint64]float32{7: 0.5}, scores)

	// no stray temporary files survive
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.rstar")

	write := func(minor uint16) error {
		return WriteFileAtomic(path, func(w io.Writer) error {
			return Envelope{Major: EnvelopeMajor, Minor: minor}.Write(w)
		})
	}
	require.NoError(t, write(1))
	require.NoError(t, write(2))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	env, err := ReadEnvelope(f)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), env.Minor)
}

func TestRestampMinor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.rstar")

	require.NoError(t, WriteFileAtomic(path, func(w io.Writer) error {
		if err := (Envelope{Major: EnvelopeMajor, Minor: 1}).Write(w); err != nil {
			return err
		}
		return WritePoiSlice(w, testPois())
	}))

	require.NoError(t, RestampMinor(path, SpatialIndexMinor))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	env, err := ReadEnvelope(f)
	require.NoError(t, err)
	assert.Equal(t, SpatialIndexMinor, env.Minor)

	pois, err := ReadPoiSlice(f)
	require.NoError(t, err)
	assert.Len(t, pois, 3)

	// already current: no-op
	require.NoError(t, RestampMinor(path, SpatialIndexMinor))
}
