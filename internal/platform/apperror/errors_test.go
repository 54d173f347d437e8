package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestValidationError_Batches(t *testing.T) {
	ve := &ValidationError{}
	if ve.HasErrors() {
		t.Error("empty ValidationError should have no errors")
	}
	if ve.OrNil() != nil {
		t.Error("OrNil should return nil when no rules violated")
	}

	ve.Add("paciente_edad", "la edad no puede ser mayor a 120").
		Add("paciente_sexo", "valor no reconocido")
	if !ve.HasErrors() {
		t.Fatal("expected errors")
	}
	if len(ve.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(ve.Errors))
	}
	if ve.OrNil() == nil {
		t.Error("OrNil should return the error when rules are violated")
	}
}

func TestIllegalTransitionError_Message(t *testing.T) {
	err := &IllegalTransitionError{From: "completed", To: "received"}
	want := `illegal transition from "completed" to "received"`
	if err.Error() != want {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func handleErr(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	HTTPErrorHandler(zerolog.New(os.Stderr))(err, c)
	return rec
}

func TestHTTPErrorHandler_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{(&ValidationError{}).Add("f", "m"), http.StatusUnprocessableEntity},
		{&IllegalTransitionError{From: "a", To: "b"}, http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("evaluate referral: %w", ErrNotFound), http.StatusNotFound},
		{echo.NewHTTPError(http.StatusBadRequest, "bad"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := handleErr(t, tc.err)
		if rec.Code != tc.want {
			t.Errorf("error %v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}
