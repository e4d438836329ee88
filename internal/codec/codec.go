// Package codec turns federated-learning artifacts into opaque byte payloads
// and back. The grid client takes a Codec as an explicit dependency; nothing
// here keeps serialization state between calls.
package codec

// Codec encodes a single artifact object to bytes and decodes bytes back
// into a caller-provided object.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}
