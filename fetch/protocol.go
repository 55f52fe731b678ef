// Package fetch implements the outbound request/response protocol used to
// pull UO metadata from peers: a length-prefixed, snappy-compressed,
// chunked exchange over a single bidirectional stream, with distinct
// time-to-first-byte and whole-exchange deadlines.
package fetch

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/golang/snappy"
)

//go:generate mockgen -destination=stream_mock_test.go -package=fetch . Stream

// Stream is the minimal peer-transport surface the protocol needs: a
// bidirectional byte stream that can half-close its write side and carries
// its own read-deadline support, the way a QUIC or libp2p stream does.
type Stream interface {
	io.Reader
	io.Writer
	CloseWrite() error
	SetReadDeadline(t time.Time) error
}

// Config bounds one exchange.
type Config struct {
	TTFBTimeout    time.Duration
	RequestTimeout time.Duration
	MaxChunkSize   int
}

// Protocol errors, each surfaced distinctly so a caller can tell a timeout
// from a malformed frame from a peer-reported failure.
var (
	ErrIncompleteStream = errors.New("fetch: incomplete stream")
	ErrStreamTimeout    = errors.New("fetch: request_timeout exceeded")
	ErrReadTimeout      = errors.New("fetch: ttfb_timeout exceeded")
	ErrChunkTooLarge    = errors.New("fetch: chunk exceeds max_chunk_size")
	ErrDecodeError      = errors.New("fetch: malformed frame")
)

// RemoteError wraps a non-zero status byte reported by the peer; it
// terminates the exchange in-band rather than at the transport level.
type RemoteError struct {
	Status byte
}

func (e *RemoteError) Error() string {
	return "fetch: remote returned non-zero status"
}

// maxVarintBytes is the longest length varint a frame may carry. Fetch does
// not reference it directly: binary.ReadUvarint applies the same 10-byte
// bound, and Fetch reports an over-long varint as ErrDecodeError.
const maxVarintBytes = 10

// Fetch runs one request/response exchange over stream: it writes the
// (optionally empty) request payload, half-closes the write side, then
// reads exactly expectedChunks framed response chunks and returns their
// decoded payloads. A stream that ends before expectedChunks chunks have
// arrived yields ErrIncompleteStream. A chunk whose frame length or decoded
// length exceeds cfg.MaxChunkSize yields ErrChunkTooLarge.
//
// hasBody is false only for bodiless requests (e.g. a metadata request);
// the client writes nothing for those.
func Fetch(stream Stream, cfg Config, requestPayload []byte, hasBody bool, expectedChunks int) ([][]byte, error) {
	if hasBody {
		if err := writeFrame(stream, requestPayload); err != nil {
			return nil, err
		}
	}
	if err := stream.CloseWrite(); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(cfg.RequestTimeout)
	if err := stream.SetReadDeadline(time.Now().Add(cfg.TTFBTimeout)); err != nil {
		return nil, err
	}

	r := bufio.NewReader(stream)
	chunks := make([][]byte, 0, expectedChunks)
	receivedFirstByte := false

	for len(chunks) < expectedChunks {
		status, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrIncompleteStream
			}
			if isTimeout(err) {
				if !receivedFirstByte {
					return nil, ErrReadTimeout
				}
				return nil, ErrStreamTimeout
			}
			return nil, err
		}
		if !receivedFirstByte {
			receivedFirstByte = true
			if err := stream.SetReadDeadline(deadline); err != nil {
				return nil, err
			}
		}
		if status != 0 {
			return nil, &RemoteError{Status: status}
		}

		length, err := binary.ReadUvarint(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrIncompleteStream
			}
			if isTimeout(err) {
				return nil, ErrStreamTimeout
			}
			return nil, ErrDecodeError
		}
		if length > uint64(cfg.MaxChunkSize) {
			return nil, ErrChunkTooLarge
		}

		compressed := make([]byte, length)
		if _, err := io.ReadFull(r, compressed); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, ErrIncompleteStream
			}
			if isTimeout(err) {
				return nil, ErrStreamTimeout
			}
			return nil, err
		}

		decodedLen, err := snappy.DecodedLen(compressed)
		if err != nil {
			return nil, ErrDecodeError
		}
		if decodedLen > cfg.MaxChunkSize {
			return nil, ErrChunkTooLarge
		}
		payload, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, ErrDecodeError
		}
		chunks = append(chunks, payload)
	}
	return chunks, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	compressed := snappy.Encode(nil, payload)
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(compressed)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}

type timeouter interface {
	Timeout() bool
}

func isTimeout(err error) bool {
	var t timeouter
	return errors.As(err, &t) && t.Timeout()
}
