package backend

import (
	"bytes"
	"encoding/json"
	"strings"
)

const currentUserNotFound = "current user not found"

// Messages accepts the envelope's error field as either a string or a list of strings.
type Messages []string

func (m *Messages) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*m = nil
			return nil
		}
		*m = Messages{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*m = list
	return nil
}

// Envelope is the response wrapper used by every backend endpoint.
type Envelope[T any] struct {
	Error   Messages `json:"error,omitempty"`
	Status  int      `json:"status"`
	Message string   `json:"message,omitempty"`
	Data    *T       `json:"data,omitempty"`
}

func (e Envelope[T]) messages() []string {
	out := append([]string(nil), e.Error...)
	if e.Message != "" {
		out = append(out, e.Message)
	}
	return out
}

func (e Envelope[T]) authExpired(httpStatus int) bool {
	if httpStatus == 401 || e.Status == 401 {
		return true
	}
	for _, msg := range e.messages() {
		if strings.Contains(strings.ToLower(msg), currentUserNotFound) {
			return true
		}
	}
	return false
}

func decodeEnvelope[T any](status int, body []byte) (T, error) {
	var zero T
	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		if status == 401 {
			return zero, ErrAuthExpired
		}
		return zero, wrapf(ErrBadResponse, "decode envelope: %v", err)
	}
	if env.authExpired(status) {
		return zero, ErrAuthExpired
	}
	if len(env.Error) > 0 || env.Data == nil || status >= 400 {
		code := env.Status
		if code == 0 {
			code = status
		}
		return zero, &ServerError{Status: code, Messages: env.messages()}
	}
	return *env.Data, nil
}
