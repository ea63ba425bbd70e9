// Package codec centralizes JSON decoding for dataset descriptions and
// sidecar files.
//
// Codec selection is a compatibility boundary: sidecar metadata is stored in
// canonical string form derived from the decoded values, so all codecs must
// agree on how JSON maps to Go values.
package codec

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}
