package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medcode-academy/assignment-service/internal/services"
	"github.com/medcode-academy/assignment-service/internal/utils"
)

func testLogger() utils.Logger {
	return utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleServiceErrorStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBaseHandler(testLogger())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"assignment not found", services.ErrAssignmentNotFound, http.StatusNotFound},
		{"submission not found", services.ErrSubmissionNotFound, http.StatusNotFound},
		{"validation", services.NewValidationError("category", "is required"), http.StatusBadRequest},
		{"duplicate part", services.NewDuplicatePartError([]string{"Chart A"}), http.StatusBadRequest},
		{"malformed payload", services.NewMalformedPayloadError("no gradable parts"), http.StatusBadRequest},
		{"time violation", services.NewTimeViolationError(services.TimeWindowClosed, time.Now()), http.StatusForbidden},
		{"permission", services.NewPermissionError("nope"), http.StatusForbidden},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

			h.handleServiceError(c, tt.err)

			if recorder.Code != tt.expected {
				t.Errorf("status = %d, want %d", recorder.Code, tt.expected)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	t.Run("generates an id", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

		if recorder.Body.String() == "" {
			t.Error("request id must be set in the context")
		}
		if recorder.Header().Get("X-Request-ID") == "" {
			t.Error("request id must be echoed in the response header")
		}
	})

	t.Run("honors inbound header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		if recorder.Body.String() != "abc-123" {
			t.Errorf("request id = %q, want abc-123", recorder.Body.String())
		}
	})
}

func TestCORSMiddlewarePreflights(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CORSMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodOptions, "/", nil))

	if recorder.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", recorder.Code, http.StatusNoContent)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("preflight must carry CORS headers")
	}
}
