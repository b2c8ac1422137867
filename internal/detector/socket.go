package detector

import (
	"fmt"
	"net"
	"strings"
	"time"

	"gocv.io/x/gocv"
)

// DefaultSocketTimeout bounds a socket round trip when Config.Timeout is unset.
const DefaultSocketTimeout = 2 * time.Second

// SocketDetector talks to a long-running landmark service over a unix or
// TCP socket, one connection per frame. Frames are sent as raw BGR bytes.
type SocketDetector struct {
	config  Config
	network string
	addr    string
	timeout time.Duration
}

// NewSocketDetector creates a detector for the service listening on cfg.SocketPath.
func NewSocketDetector(cfg Config) *SocketDetector {
	network, addr := socketAddr(cfg.SocketPath)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSocketTimeout
	}
	return &SocketDetector{
		config:  cfg,
		network: network,
		addr:    addr,
		timeout: timeout,
	}
}

// socketAddr splits a tcp:// or unix:// address. A bare value is a unix path.
func socketAddr(s string) (network, addr string) {
	for _, scheme := range []string{"tcp", "unix"} {
		if rest, ok := strings.CutPrefix(s, scheme+"://"); ok {
			return scheme, rest
		}
	}
	return "unix", s
}

// Detect sends one frame and waits for the detections.
func (d *SocketDetector) Detect(frame *gocv.Mat) (*Detections, error) {
	if frame == nil || frame.Empty() {
		return &Detections{}, nil
	}

	conn, err := net.DialTimeout(d.network, d.addr, d.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to landmark service: %v: %w", err, ErrServiceUnavailable)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(d.timeout))

	req := newFrameRequest(d.config, "bgr", frame.Cols(), frame.Rows(), frame.ToBytes())
	if err := writeFrame(conn, req); err != nil {
		return nil, err
	}

	var resp frameResponse
	if err := readFrame(conn, &resp); err != nil {
		return nil, err
	}
	return resp.toDetections()
}

// Close is a no-op; connections are per frame.
func (d *SocketDetector) Close() error {
	return nil
}
