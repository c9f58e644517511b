package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("PATCH", "/api/items/1", nil)
	handler(c)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestSuccessAndCreated(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, map[string]string{"slug": "alpha"})
	})
	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if resp := parseResponse(t, w); resp.Code != 0 || resp.Message != "ok" {
		t.Errorf("unexpected envelope: %+v", resp)
	}

	w = performRequest(func(c *gin.Context) {
		Created(c, map[string]int{"id": 7})
	})
	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if resp := parseResponse(t, w); resp.Message != "created" {
		t.Errorf("expected message 'created', got %q", resp.Message)
	}
}

func TestError_MapsAppErrors(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
	}{
		{NewBadRequest("title is required"), http.StatusBadRequest},
		{NewUnauthorized("missing principal"), http.StatusUnauthorized},
		{NewForbidden("not a member of this meridian"), http.StatusForbidden},
		{NewNotFound("item not found"), http.StatusNotFound},
		{NewConflict("cannot remove the only owner"), http.StatusConflict},
	}

	for _, tc := range cases {
		w := performRequest(func(c *gin.Context) {
			Error(c, tc.err)
		})
		if w.Code != tc.status {
			t.Errorf("%q: expected status %d, got %d", tc.err.Message, tc.status, w.Code)
		}
		resp := parseResponse(t, w)
		if resp.Code != tc.status {
			t.Errorf("%q: expected code %d, got %d", tc.err.Message, tc.status, resp.Code)
		}
		if resp.Message != tc.err.Message {
			t.Errorf("expected message %q, got %q", tc.err.Message, resp.Message)
		}
	}
}

func TestError_UnwrapsAppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, fmt.Errorf("reparent: %w", NewConflict("cannot move an item beneath itself")))
	})

	if w.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
	}
}

func TestError_GenericErrorIsOpaque(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("UNIQUE constraint failed: statuses.meridian_id"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	resp := parseResponse(t, w)
	if resp.Message != "internal server error" {
		t.Errorf("expected opaque message, got %q", resp.Message)
	}
	if strings.Contains(w.Body.String(), "UNIQUE") {
		t.Error("store error leaked into the response body")
	}
}

func TestConvenienceHelpers(t *testing.T) {
	cases := []struct {
		name   string
		fn     func(*gin.Context, string)
		status int
	}{
		{"bad request", BadRequest, http.StatusBadRequest},
		{"unauthorized", Unauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden, http.StatusForbidden},
		{"not found", NotFound, http.StatusNotFound},
		{"conflict", Conflict, http.StatusConflict},
		{"server error", ServerError, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := performRequest(func(c *gin.Context) {
			tc.fn(c, tc.name)
		})
		if w.Code != tc.status {
			t.Errorf("%s: expected status %d, got %d", tc.name, tc.status, w.Code)
		}
		if resp := parseResponse(t, w); resp.Message != tc.name {
			t.Errorf("%s: expected message %q, got %q", tc.name, tc.name, resp.Message)
		}
	}
}

func TestErrorf(t *testing.T) {
	err := Errorf(NewNotFound(""), "status %d not found", 12)
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.HTTPStatus)
	}
	if err.Error() != "status 12 not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
