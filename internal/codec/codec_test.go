package codec

import (
	"reflect"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/openfed/gridworker/internal/model"
)

func TestJSONRoundTrip(t *testing.T) {
	c := NewJSON()
	if c.Name() != "json" {
		t.Errorf("Name = %q, want json", c.Name())
	}

	in := model.State{Tensors: []model.Tensor{{Shape: []int64{2, 2}, Values: []float64{1, 2, 3, 4}}}}
	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var out model.State
	if err := c.Decode(data, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestProtobufRoundTrip(t *testing.T) {
	c := NewProtobuf()
	if c.Name() != "protobuf" {
		t.Errorf("Name = %q, want protobuf", c.Name())
	}

	data, err := c.Encode(wrapperspb.String("serialized-plan"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out := &wrapperspb.StringValue{}
	if err := c.Decode(data, out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Value != "serialized-plan" {
		t.Errorf("value = %q, want serialized-plan", out.Value)
	}
}

func TestProtobufRejectsPlainStructs(t *testing.T) {
	c := NewProtobuf()

	if _, err := c.Encode(model.State{}); err == nil {
		t.Error("Encode accepted a non-proto type")
	}
	var st model.State
	if err := c.Decode([]byte{}, &st); err == nil {
		t.Error("Decode accepted a non-proto type")
	}
}
