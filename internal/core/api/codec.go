package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

// decode converts a request Struct into v through its JSON form, so request
// types share json tags with the file loaders. Unknown keys are rejected.
func (s *DecisionService) decode(req *structpb.Struct, v any) error {
	if req == nil {
		req = &structpb.Struct{}
	}
	data, err := protojson.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(data) > s.maxTreeBytes {
		return fmt.Errorf("%w: request is %d bytes, limit is %d", types.ErrTreeTooLarge, len(data), s.maxTreeBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// encode converts a response value into a Struct.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	return nil
}
