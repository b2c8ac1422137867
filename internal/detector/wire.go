package detector

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxFrameBytes bounds a single response read from a landmark service.
const maxFrameBytes = 16 << 20

// frameRequest is sent to the landmark service for every frame.
type frameRequest struct {
	Height   int    `msgpack:"h"`
	Width    int    `msgpack:"w"`
	Format   string `msgpack:"f"` // "jpeg" or "bgr"
	Data     []byte `msgpack:"d"`
	MaxHands int    `msgpack:"max_hands"`
	MaxFaces int    `msgpack:"max_faces"`
	Quads    bool   `msgpack:"quads"`
}

// frameResponse is returned by the landmark service.
type frameResponse struct {
	Quads       []Quad          `msgpack:"quads"`
	Hands       []HandLandmarks `msgpack:"hands"`
	Faces       []FaceLandmarks `msgpack:"faces"`
	InferenceMs float32         `msgpack:"inference_ms"`
	Error       string          `msgpack:"error"`
}

func newFrameRequest(cfg Config, format string, width, height int, data []byte) frameRequest {
	return frameRequest{
		Height:   height,
		Width:    width,
		Format:   format,
		Data:     data,
		MaxHands: cfg.MaxHands,
		MaxFaces: cfg.MaxFaces,
		Quads:    cfg.Quads,
	}
}

// writeFrame writes a 4-byte big-endian length followed by the msgpack payload.
func writeFrame(w io.Writer, v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(payload)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed msgpack payload into v.
func readFrame(r io.Reader, v any) error {
	length := make([]byte, 4)
	if _, err := io.ReadFull(r, length); err != nil {
		return fmt.Errorf("read length: %w", err)
	}

	n := binary.BigEndian.Uint32(length)
	if n > maxFrameBytes {
		return fmt.Errorf("response too large: %d bytes", n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// toDetections validates a service response and fills in missing handedness.
func (r *frameResponse) toDetections() (*Detections, error) {
	if r.Error != "" {
		return nil, fmt.Errorf("landmark service: %s", r.Error)
	}

	d := &Detections{Quads: r.Quads, Hands: r.Hands, Faces: r.Faces}
	for i := range d.Hands {
		if d.Hands[i].Handedness == "" {
			d.Hands[i].Handedness = d.Hands[i].InferSide()
		}
	}
	return d, nil
}
