package gate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned for a mode name or code that is not defined.
var ErrUnknownMode = errors.New("unknown capture mode")

// Mode selects what a session captures. Values are the wire codes shared
// with clients.
type Mode int

const (
	ModeDocument     Mode = 1
	ModeFace         Mode = 2
	ModeFaceThenHand Mode = 3
	ModeHand         Mode = 4
)

// Modes lists every mode in menu order.
var Modes = []Mode{ModeDocument, ModeFace, ModeHand, ModeFaceThenHand}

func (m Mode) String() string {
	switch m {
	case ModeDocument:
		return "document"
	case ModeFace:
		return "face"
	case ModeHand:
		return "hand"
	case ModeFaceThenHand:
		return "face_hand"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= ModeDocument && m <= ModeHand
}

// ParseMode accepts a mode name ("document", "face", "hand", "face_hand")
// or its numeric code.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "document", "1":
		return ModeDocument, nil
	case "face", "2":
		return ModeFace, nil
	case "face_hand", "face-hand", "facehand", "3":
		return ModeFaceThenHand, nil
	case "hand", "4":
		return ModeHand, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalText encodes m by name.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a name or code.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// DocumentVariant picks between the two document capture flows.
type DocumentVariant string

const (
	// VariantStream checks the full camera stream loosely and needs a long
	// streak before capture.
	VariantStream DocumentVariant = "stream"
	// VariantScanner checks framing strictly and captures after a short streak.
	VariantScanner DocumentVariant = "scanner"
)

// ParseVariant accepts "stream" or "scanner". An empty string is stream.
func ParseVariant(s string) (DocumentVariant, error) {
	switch DocumentVariant(strings.ToLower(strings.TrimSpace(s))) {
	case "", VariantStream:
		return VariantStream, nil
	case VariantScanner:
		return VariantScanner, nil
	}
	return "", fmt.Errorf("unknown document variant %q", s)
}

// DocumentType selects the scanner sharpness threshold.
type DocumentType string

const (
	DocumentPassport DocumentType = "passport"
	DocumentIDCard   DocumentType = "idcard"
)

// ParseDocumentType accepts "passport" or "idcard". An empty string is passport.
func ParseDocumentType(s string) (DocumentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "passport":
		return DocumentPassport, nil
	case "idcard", "id_card", "id-card", "id":
		return DocumentIDCard, nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}
