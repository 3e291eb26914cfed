/*
 * MIT License
 *
 * Copyright (c) 2023 EASL and the vHive community
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package workload

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"
)

// Codec is one serialization format under measurement.
type Codec interface {
	Name() string
	Marshal(p *Payload) ([]byte, error)
	Unmarshal(data []byte, into *Payload) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(p *Payload) ([]byte, error) {
	return json.Marshal(p)
}

func (jsonCodec) Unmarshal(data []byte, into *Payload) error {
	return json.Unmarshal(data, into)
}

var jsoniterAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type jsoniterCodec struct{}

func (jsoniterCodec) Name() string { return "jsoniter" }

func (jsoniterCodec) Marshal(p *Payload) ([]byte, error) {
	return jsoniterAPI.Marshal(p)
}

func (jsoniterCodec) Unmarshal(data []byte, into *Payload) error {
	return jsoniterAPI.Unmarshal(data, into)
}

// protobufCodec uses the schema-less structpb encoding, so the suite needs
// no generated message types.
type protobufCodec struct{}

func (protobufCodec) Name() string { return "protobuf" }

func (protobufCodec) Marshal(p *Payload) ([]byte, error) {
	s, err := structpb.NewStruct(p.toValueMap())
	if err != nil {
		return nil, err
	}

	return proto.Marshal(s)
}

func (protobufCodec) Unmarshal(data []byte, into *Payload) error {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return err
	}

	return into.fromValueMap(s.AsMap())
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Marshal(p *Payload) ([]byte, error) {
	return yaml.Marshal(p)
}

func (yamlCodec) Unmarshal(data []byte, into *Payload) error {
	return yaml.Unmarshal(data, into)
}

type gobCodec struct{}

func (gobCodec) Name() string { return "gob" }

func (gobCodec) Marshal(p *Payload) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, into *Payload) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(into)
}

// CodecNames lists the registered codecs in their canonical order.
func CodecNames() []string {
	return []string{"json", "jsoniter", "protobuf", "yaml", "gob"}
}

func AllCodecs() []Codec {
	return []Codec{jsonCodec{}, jsoniterCodec{}, protobufCodec{}, yamlCodec{}, gobCodec{}}
}

func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "json":
		return jsonCodec{}, nil
	case "jsoniter":
		return jsoniterCodec{}, nil
	case "protobuf", "proto":
		return protobufCodec{}, nil
	case "yaml":
		return yamlCodec{}, nil
	case "gob":
		return gobCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (known: %s)", name, strings.Join(CodecNames(), ", "))
	}
}
