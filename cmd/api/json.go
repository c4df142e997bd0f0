package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var Validate = newValidator()

var (
	phonePattern     = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{6,18}[0-9]$`)
	expoTokenPattern = regexp.MustCompile(`^(Exponent|Expo)PushToken\[[A-Za-z0-9_-]+\]$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their json name
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// digits with optional leading +, spaces, dashes and parentheses
	v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("expotoken", func(fl validator.FieldLevel) bool {
		return expoTokenPattern.MatchString(fl.Field().String())
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// readJSON decodes a body of at most 1MB into data, rejecting unknown fields.
func readJSON(w http.ResponseWriter, r *http.Request, data any) error {
	maxBytes := 1_048_578 //1mb
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(data)
}

// readOptionalJSON is readJSON for endpoints whose body may be left out.
func readOptionalJSON(w http.ResponseWriter, r *http.Request, data any) error {
	if err := readJSON(w, r, data); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) error {
	type envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Status  int    `json:"status"`
	}

	return writeJSON(w, status, &envelope{
		Success: false,
		Message: message,
		Status:  status,
	})
}

func (app *application) jsonResponse(w http.ResponseWriter, status int, data any) error {
	type envelope struct {
		Data any `json:"data"`
	}
	return writeJSON(w, status, &envelope{Data: data})
}
