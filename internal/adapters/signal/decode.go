package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func badRequest(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, domain.ErrBadRequest, err)
}

// decode turns an envelope into a typed, validated request.
func (ctl *SignalWSController) decode(in inbound) (orch.Request, error) {
	req, ok := orch.NewRequest(in.Type)
	if !ok {
		return nil, fmt.Errorf("unknown request type %q: %w", in.Type, domain.ErrBadRequest)
	}
	if data := bytes.TrimSpace(in.Data); len(data) > 0 && !bytes.Equal(data, []byte("null")) {
		if err := json.Unmarshal(data, req); err != nil {
			return nil, badRequest("decode "+in.Type, err)
		}
	}
	if err := ctl.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	return req, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest("validate", err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid request: %s: %w", strings.Join(parts, "; "), domain.ErrBadRequest)
}
