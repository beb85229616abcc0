package util

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

type EncoderDecoder[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte) (*T, error)
}

type JsonEncDec[T any] struct{}

var _ EncoderDecoder[any] = new(JsonEncDec[any])

func NewJsonEncoderDecoder[T any]() *JsonEncDec[T] {
	return &JsonEncDec[T]{}
}

func (encdec *JsonEncDec[T]) Encode(value T) ([]byte, error) {
	return json.Marshal(value)
}

func (encdec *JsonEncDec[T]) Decode(data []byte) (*T, error) {
	var res T
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type YamlEncDec[T any] struct{}

var _ EncoderDecoder[any] = new(YamlEncDec[any])

func NewYamlEncoderDecoder[T any]() *YamlEncDec[T] {
	return &YamlEncDec[T]{}
}

func (encdec *YamlEncDec[T]) Encode(value T) ([]byte, error) {
	return yaml.Marshal(value)
}

func (encdec *YamlEncDec[T]) Decode(data []byte) (*T, error) {
	var res T
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
