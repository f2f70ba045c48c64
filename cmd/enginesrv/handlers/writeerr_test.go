package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/orbitalflow/engine/internal/orcherr"
)

func doWriteErr(t *testing.T, err error) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if werr := writeErr(c, err); werr != nil {
		t.Fatalf("writeErr returned an error: %v", werr)
	}
	return rec
}

func TestWriteErrMapsValidationKindToBadRequest(t *testing.T) {
	rec := doWriteErr(t, orcherr.New(orcherr.KindValidation, "n1", "bad input"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWriteErrMapsVersionConflictToConflict(t *testing.T) {
	rec := doWriteErr(t, orcherr.New(orcherr.KindVersionConflict, "", "stale version"))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestWriteErrMapsTimeoutToGatewayTimeout(t *testing.T) {
	rec := doWriteErr(t, orcherr.New(orcherr.KindTimeout, "", "took too long"))
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func TestWriteErrMapsBudgetExceededToTooManyRequests(t *testing.T) {
	rec := doWriteErr(t, orcherr.New(orcherr.KindBudgetExceeded, "", "over budget"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestWriteErrFallsBackTo500ForNonOrchError(t *testing.T) {
	rec := doWriteErr(t, &genericErr{"boom"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestWriteErrBodyIncludesKindAndMessage(t *testing.T) {
	rec := doWriteErr(t, orcherr.New(orcherr.KindValidation, "n1", "bad input"))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] != string(orcherr.KindValidation) {
		t.Errorf("error = %v, want %v", body["error"], orcherr.KindValidation)
	}
	if body["node_id"] != "n1" {
		t.Errorf("node_id = %v, want n1", body["node_id"])
	}
}

type genericErr struct{ msg string }

func (e *genericErr) Error() string { return e.msg }
