// Package handler implements the JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/lineage/internal/family"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
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

type errorBody struct {
	Error string      `json:"error"`
	Kind  family.Kind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(k family.Kind) int {
	switch k {
	case family.KindNotFound:
		return http.StatusNotFound
	case family.KindSelfReference, family.KindCycleDetected:
		return http.StatusConflict
	case family.KindChallengeExhausted:
		return http.StatusUnprocessableEntity
	case family.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error", "kind"}. Internal failures are logged
// and reported without detail.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	kind := family.KindOf(err)
	status := statusFor(kind)
	if status >= 500 {
		logger.Error(op, "error", err)
	}
	writeJSON(w, status, errorBody{Error: kind.Message(), Kind: kind})
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathInt(r, "id")
}

func parseFamilyID(r *http.Request) (int64, error) {
	return parsePathInt(r, "family_id")
}

func parsePathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return v, nil
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}
