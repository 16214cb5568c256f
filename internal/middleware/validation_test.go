package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.uber.org/zap"
)

type costRequest struct {
	NewCost json.Number `json:"new_cost" validate:"required,cost"`
	Note    string      `json:"note" validate:"max=20"`
}

func decodeCost(body string) error {
	req := httptest.NewRequest("PUT", "/api/products/1/cost", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	var cr costRequest
	return DecodeAndValidate(req, &cr)
}

func TestProperty_MissingCostIsRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing new_cost fails validation", prop.ForAll(
		func(includeCost bool, note string) bool {
			reqMap := map[string]interface{}{"note": note}
			if includeCost {
				reqMap["new_cost"] = "12.50"
			}
			body, _ := json.Marshal(reqMap)

			err := decodeCost(string(body))
			if includeCost {
				return err == nil
			}
			return err != nil
		},
		gen.Bool(),
		gen.AlphaString().Map(func(s string) string {
			if len(s) > 20 {
				return s[:20]
			}
			return s
		}),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_NonNegativeCentAmountsPass(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("non-negative amounts in cents validate", prop.ForAll(
		func(cents int64) bool {
			body := fmt.Sprintf(`{"new_cost":"%d.%02d"}`, cents/100, cents%100)
			return decodeCost(body) == nil
		},
		gen.Int64Range(0, 99999999),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCostValidation(t *testing.T) {
	cases := map[string]bool{
		`{"new_cost":"12.50"}`: true,
		`{"new_cost":12.5}`:    true,
		`{"new_cost":"0"}`:     true,
		`{"new_cost":"-1.00"}`: false,
		`{"new_cost":"1.005"}`: false,
		`{"new_cost":"abc"}`:   false,
		`{"new_cost":""}`:      false,

		`{"new_cost":"9999999999.99"}`: true,
		`{"new_cost":"10000000000"}`:   false,
	}

	for body, valid := range cases {
		err := decodeCost(body)
		if valid && err != nil {
			t.Errorf("%s: expected valid, got %v", body, err)
		}
		if !valid && err == nil {
			t.Errorf("%s: expected an error", body)
		}
	}
}

func TestValidationErrorsUseJSONFieldNames(t *testing.T) {
	err := decodeCost(`{"new_cost":"-3"}`)
	if err == nil {
		t.Fatal("Expected validation error")
	}

	validationErrors := FormatValidationErrors(err)
	if len(validationErrors) != 1 {
		t.Fatalf("Expected 1 validation error, got %d", len(validationErrors))
	}
	if validationErrors[0].Field != "new_cost" {
		t.Errorf("Expected field new_cost, got %s", validationErrors[0].Field)
	}
	if validationErrors[0].Message == "" {
		t.Error("Expected a message")
	}
}

func TestValidationMiddlewareRequiresJSONBodies(t *testing.T) {
	handler := ValidationMiddleware(zap.NewNop())(okHandler())

	cases := []struct {
		contentType string
		body        string
		want        int
	}{
		{"application/json", `{"new_cost":"1"}`, http.StatusOK},
		{"application/json; charset=utf-8", `{"new_cost":"1"}`, http.StatusOK},
		{"text/plain", "new_cost=1", http.StatusUnsupportedMediaType},
		{"", "", http.StatusOK},
	}

	for _, tc := range cases {
		req := httptest.NewRequest("PUT", "/api/products/1/cost", bytes.NewBufferString(tc.body))
		if tc.contentType != "" {
			req.Header.Set("Content-Type", tc.contentType)
		}
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		if w.Code != tc.want {
			t.Errorf("content type %q: expected %d, got %d", tc.contentType, tc.want, w.Code)
		}
	}
}
