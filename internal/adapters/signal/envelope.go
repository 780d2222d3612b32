package signal

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/domain"
)

const typeResponse = "response"

// inbound is a client request: {"id": n, "type": op, "data": {...}}.
type inbound struct {
	ID   uint64          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type response struct {
	ID    uint64     `json:"id"`
	Type  string     `json:"type"`
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type push struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func okResponse(id uint64, data any) response {
	return response{ID: id, Type: typeResponse, OK: true, Data: data}
}

func errResponse(id uint64, err error) response {
	return response{
		ID:   id,
		Type: typeResponse,
		Error: &errorBody{
			Code:    domain.ErrorCode(err),
			Message: err.Error(),
		},
	}
}
