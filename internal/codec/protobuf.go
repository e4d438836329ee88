package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// ProtobufCodec serializes artifacts that are generated protobuf messages,
// for grids that exchange syft-proto payloads instead of JSON.
type ProtobufCodec struct{}

var _ Codec = (*ProtobufCodec)(nil)

func NewProtobuf() Codec {
	return &ProtobufCodec{}
}

func (*ProtobufCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("protobuf codec: unsupported type %T", v)
	}
	return proto.Marshal(msg)
}

func (*ProtobufCodec) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("protobuf codec: unsupported type %T", v)
	}
	return proto.Unmarshal(data, msg)
}

func (*ProtobufCodec) Name() string {
	return "protobuf"
}
