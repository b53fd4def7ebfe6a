package client

import (
	"encoding/json"
	"fmt"
)

// CodeOK is the only envelope code treated as application-level success.
const CodeOK = 200

// Envelope is the application-level wrapper every response body carries.
type Envelope[T any] struct {
	Code   int    `json:"code"`
	Data   T      `json:"data"`
	ErrMsg string `json:"errMsg"`
}

// OK reports whether the envelope signals success.
func (e Envelope[T]) OK() bool {
	return e.Code == CodeOK
}

// Err returns nil for a successful envelope and an *ApplicationError
// otherwise.
func (e Envelope[T]) Err() error {
	if e.OK() {
		return nil
	}
	return &ApplicationError{Code: e.Code, Message: e.ErrMsg}
}

// Decode converts a raw envelope into a typed one.
func Decode[T any](raw *Envelope[json.RawMessage]) (Envelope[T], error) {
	out := Envelope[T]{Code: raw.Code, ErrMsg: raw.ErrMsg}
	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw.Data, &out.Data); err != nil {
		return out, fmt.Errorf("decode envelope data: %w", err)
	}
	return out, nil
}
