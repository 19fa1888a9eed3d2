package codec

import "fmt"

// ICodec is the interface for all value codecs.
// Every cache entry is encoded with a codec before it is written to the durable store.
type ICodec interface {
	// Marshal encodes v into a byte array
	// It returns the encoded byte array and an error if any
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes a byte array into v, which must be a pointer
	// It returns an error if any
	Unmarshal(b []byte, v any) error
	// Name returns the name the codec is selected by in the configuration
	Name() string
}

// ByName returns the codec for a configuration value (json, gob).
func ByName(name string) (ICodec, error) {
	switch name {
	case "json", "":
		return NewJSONCodec(), nil
	case "gob":
		return NewGOBCodec(), nil
	default:
		return nil, fmt.Errorf("invalid codec %s (expected one of: json, gob)", name)
	}
}
