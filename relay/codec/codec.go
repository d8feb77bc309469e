// Package codec is the single serializer shared by the relay stores and
// the gRPC wire. Records are encoded with msgpack; struct tags on the
// types package are the schema.
package codec

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
)

// Name is the registered gRPC codec name. Clients select it per call
// with grpc.CallContentSubtype(codec.Name).
const Name = "msgpack"

func init() {
	encoding.RegisterCodec(grpcCodec{})
}

// Marshal encodes a record deterministically: msgpack emits struct
// fields in declaration order.
func Marshal(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "could not encode record")
	}
	return b, nil
}

// Unmarshal decodes into the given pointer.
func Unmarshal(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "could not decode record")
	}
	return nil
}

// Hash returns the hex sha256 of the encoding of v. Both SATP gateways
// hash messages through this function, so the chain check compares like
// with like.
func Hash(v interface{}) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type grpcCodec struct{}

func (grpcCodec) Marshal(v interface{}) ([]byte, error) {
	return Marshal(v)
}

func (grpcCodec) Unmarshal(data []byte, v interface{}) error {
	return Unmarshal(data, v)
}

func (grpcCodec) Name() string {
	return Name
}
