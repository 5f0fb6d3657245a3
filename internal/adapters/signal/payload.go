package signal

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/codesketch/hub/internal/domain"
)

// Op is an inbound operation kind. The dispatch switch in io.go is the
// single source of truth for sequencing.
type Op string

const (
	OpJoin            Op = "join"
	OpCodeChange      Op = "codeChange"
	OpLanguageChange  Op = "languageChange"
	OpInputChange     Op = "inputChange"
	OpExecuteCode     Op = "executeCode"
	OpExecutionResult Op = "executionResult"
	OpPing            Op = "ping"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_\s]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	return v
}

type joinPayload struct {
	RoomID   string `json:"roomId" validate:"required,uuid"`
	Username string `json:"username" validate:"required,min=2,max=30,username"`
}

type codeChangePayload struct {
	RoomID string `json:"roomId" validate:"required,uuid"`
	Code   string `json:"code" validate:"max=100000"`
}

type languageChangePayload struct {
	RoomID   string          `json:"roomId" validate:"required,uuid"`
	Language domain.Language `json:"language" validate:"required,oneof=cpp c javascript java python"`
}

type inputChangePayload struct {
	RoomID string `json:"roomId" validate:"required,uuid"`
	Stdin  string `json:"stdin" validate:"max=10000"`
}

type executeCodePayload struct {
	RoomID   string          `json:"roomId" validate:"required,uuid"`
	Code     string          `json:"code" validate:"required,max=100000"`
	Language domain.Language `json:"language" validate:"required,oneof=cpp c javascript java python"`
	Stdin    string          `json:"stdin" validate:"omitempty,max=10000"`
}

type executionResultPayload struct {
	RoomID  string  `json:"roomId" validate:"required,uuid"`
	Output  *string `json:"output" validate:"required"`
	IsError bool    `json:"isError"`
}

// decodePayload unmarshals and validates an inbound payload. Extra
// JSON fields are ignored. Any failure surfaces as ErrValidation and
// nothing is mutated.
func decodePayload(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", ErrValidation)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
