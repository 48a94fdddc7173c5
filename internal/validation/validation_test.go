package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func strPtr(s string) *string { return &s }

func TestCreateOrderRequest_Valid(t *testing.T) {
	v := New()
	req := CreateOrderRequest{
		Items: []OrderItem{
			{Part: "X1", Quantity: 2},
			{Part: "X2", Quantity: 1},
		},
	}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}
}

func TestCreateOrderRequest_Invalid(t *testing.T) {
	v := New()
	cases := map[string]CreateOrderRequest{
		"no items":      {},
		"zero quantity": {Items: []OrderItem{{Part: "X1", Quantity: 0}}},
		"missing part":  {Items: []OrderItem{{Quantity: 1}}},
	}
	for name, req := range cases {
		if err := v.Struct(req); err == nil {
			t.Fatalf("%s: expected validation error, got nil", name)
		}
	}
}

func TestUpdatePartRequest_RequiresAField(t *testing.T) {
	v := New()
	if err := v.Struct(UpdatePartRequest{}); err == nil {
		t.Fatal("expected error for empty update")
	}
	if err := v.Struct(UpdatePartRequest{Rack: strPtr("B-12")}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := v.Struct(UpdatePartRequest{Class: strPtr("weird")}); err == nil {
		t.Fatal("expected error for unknown class")
	}
}

func TestLineStatusRequest(t *testing.T) {
	v := New()
	if err := v.Struct(LineStatusRequest{Status: "confirmed"}); err == nil {
		t.Fatal("only cancellation is allowed administratively")
	}
	if err := v.Struct(LineStatusRequest{Status: "cancelled"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestBindAndValidate_WritesBadRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	v := New()
	for name, body := range map[string]string{
		"malformed": `{"part":`,
		"invalid":   `{"part":"X1"}`,
	} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")

		var req DeliveryRequest
		if err := BindAndValidate(c, &req, v); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", name, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"success":false`) {
			t.Fatalf("%s: body %s lacks envelope", name, w.Body.String())
		}
	}
}
