package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type echoRequest struct {
	Description string `json:"description" binding:"required"`
}

func newTestContext(method string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(method, "/api/forms", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, recorder
}

func TestBindJSONValid(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, `{"description": "a contact form"}`)

	var req echoRequest
	if !BindJSON(c, &req) {
		t.Fatalf("expected bind to succeed")
	}
	if req.Description != "a contact form" {
		t.Fatalf("unexpected description: %q", req.Description)
	}
}

func TestBindJSONMissingField(t *testing.T) {
	c, recorder := newTestContext(http.MethodPost, `{}`)

	var req echoRequest
	if BindJSON(c, &req) {
		t.Fatalf("expected bind to fail")
	}
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
}

func TestBindJSONAllowEmptyBody(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "")

	var req struct {
		Days int `json:"days"`
	}
	if !BindJSONAllowEmpty(c, &req) {
		t.Fatalf("expected empty body to be allowed")
	}
}
