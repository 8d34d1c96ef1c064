package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Token    string `json:"token"`
}

type UpdateProfileRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=30"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type CreatePostRequest struct {
	Caption string `json:"caption" validate:"max=2200"`
	Image   string `json:"image" validate:"required"`
}

type CommentRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

type CreateChatRequest struct {
	UserId int `json:"userId" validate:"required,gt=0"`
}

// SendMessageRequest content is capped so the stored message, once
// emitted on the relay, fits in a single inbound frame.
type SendMessageRequest struct {
	ChatId  int    `json:"chatId" validate:"required,gt=0"`
	Content string `json:"content" validate:"required,max=4000"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs its validation
// tags. The returned error is ready to be written to the client.
func (s *SocialApp) decodeAndValidate(r *http.Request, dst any) *ApiError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return NewBadRequestError()
	}

	return s.validateRequest(dst)
}

func (s *SocialApp) validateRequest(v any) *ApiError {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewBadRequestError()
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	sort.Strings(fields)

	return NewBadRequestErrorMessage("invalid " + strings.Join(fields, ", "))
}
