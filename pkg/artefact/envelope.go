package artefact

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Magic opens every persisted binary artefact.
const Magic = "WSPI"

const (
	// EnvelopeMajor changes on any layout change; readers refuse majors they
	// do not know.
	EnvelopeMajor uint16 = 1

	SpatialIndexMinor uint16 = 2
	PopularityMinor   uint16 = 1
)

// Envelope is the fixed header in front of every artefact payload: 4-byte
// magic, little-endian u16 major, u16 minor, u8 flags.
type Envelope struct {
	Major uint16
	Minor uint16
	Flags uint8
}

type InvalidMagicError struct {
	Got [4]byte
}

func (e *InvalidMagicError) Error() string {
	return fmt.Sprintf("bad artefact magic %q, want %q", e.Got[:], Magic)
}

type UnsupportedVersionError struct {
	Major uint16
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported artefact major version %d, reader supports %d", e.Major, EnvelopeMajor)
}

func (e Envelope) Write(w io.Writer) error {
	if _, err := w.Write([]byte(Magic)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Major); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Minor); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, e.Flags)
}

// ReadEnvelope consumes and checks the header. Unknown majors are refused;
// a newer minor than the reader was built for is acceptable.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return Envelope{}, fmt.Errorf("reading artefact magic: %w", err)
	}
	if string(magic[:]) != Magic {
		return Envelope{}, &InvalidMagicError{Got: magic}
	}

	var env Envelope
	if err := binary.Read(r, binary.LittleEndian, &env.Major); err != nil {
		return Envelope{}, fmt.Errorf("reading artefact major version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &env.Minor); err != nil {
		return Envelope{}, fmt.Errorf("reading artefact minor version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &env.Flags); err != nil {
		return Envelope{}, fmt.Errorf("reading artefact flags: %w", err)
	}
	if env.Major != EnvelopeMajor {
		return Envelope{}, &UnsupportedVersionError{Major: env.Major}
	}
	return env, nil
}
