package codec

import (
	"encoding/json"
)

// NewJSONCodec creates a new codec using json encoding
func NewJSONCodec() ICodec {
	return &jsonCodecImpl{}
}

// jsonCodecImpl implements the ICodec interface using json encoding
type jsonCodecImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ICodec)
// --------------------------------------------------------------------------

func (j jsonCodecImpl) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j jsonCodecImpl) Unmarshal(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

func (j jsonCodecImpl) Name() string {
	return "json"
}
