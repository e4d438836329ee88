package transport

import "io"

// Stream is a chunked view over a streaming response body. Next hands out
// successive chunks of at most the configured size; the final chunk may be
// short. Close releases the underlying body and is safe to call more than
// once, including after an error.
type Stream struct {
	body   io.ReadCloser
	buf    []byte
	closed bool
}

func NewStream(body io.ReadCloser, chunkSize int) *Stream {
	return &Stream{body: body, buf: make([]byte, chunkSize)}
}

// Next returns the next chunk, or io.EOF once the body is exhausted. The
// returned slice is only valid until the following Next call.
func (s *Stream) Next() ([]byte, error) {
	n, err := io.ReadFull(s.body, s.buf)
	if n > 0 {
		return s.buf[:n], nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return nil, err
}

func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
