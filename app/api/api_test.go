package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestJSONResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	JSONResponse(rec, http.StatusCreated, map[string]any{"id": 7, "name": "Scone"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":7,"name":"Scone"}`, rec.Body.String())
}

func TestErrorResponse(t *testing.T) {
	rec := httptest.NewRecorder()

	ErrorResponse(rec, http.StatusNotFound, "Product not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Product not found"}`, rec.Body.String())
}

func TestInternalError(t *testing.T) {
	testCases := []struct {
		name     string
		expose   bool
		expected string
	}{
		{name: "Detail hidden", expose: false, expected: `{"error":"Failed to create product"}`},
		{name: "Detail exposed", expose: true, expected: `{"error":"Failed to create product: disk full"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			var logs bytes.Buffer
			logger := zerolog.New(&logs)
			req := httptest.NewRequest("POST", "/products/", nil)
			req = req.WithContext(logger.WithContext(req.Context()))
			rec := httptest.NewRecorder()

			// Act
			InternalError(rec, req, "Failed to create product", errors.New("disk full"), tc.expose)

			// Assert
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.JSONEq(t, tc.expected, rec.Body.String())
			assert.Contains(t, logs.String(), `"level":"error"`)
			assert.Contains(t, logs.String(), "disk full", "the cause is always logged")
		})
	}
}

func TestFieldErrorsCheck(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		tag      string
		expected []string
	}{
		{name: "Valid", value: "Cakes", tag: "required,max=100", expected: nil},
		{name: "Blank", value: "", tag: "required,max=100", expected: []string{MsgBlank}},
		{name: "Too long", value: strings.Repeat("é", 101), tag: "required,max=100", expected: []string{"Ensure this field has no more than 100 characters."}},
		{name: "Counts characters not bytes", value: strings.Repeat("é", 100), tag: "max=100", expected: nil},
		{name: "Slug", value: "birthday-cakes_2", tag: "slug", expected: nil},
		{name: "Bad slug", value: "birthday cakes", tag: "slug", expected: []string{`Enter a valid "slug" consisting of letters, numbers, underscores or hyphens.`}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fe := FieldErrors{}

			fe.Check("field", tc.value, tc.tag)

			assert.Equal(t, tc.expected, fe["field"])
			assert.Equal(t, tc.expected == nil, fe.Empty())
		})
	}
}

func TestValidationResponse(t *testing.T) {
	fe := FieldErrors{}
	fe.Add("name", MsgRequired)
	fe.Add("price", "A valid number is required.")
	rec := httptest.NewRecorder()

	ValidationResponse(rec, fe)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"name":["This field is required."],"price":["A valid number is required."]}`, rec.Body.String())
	assert.Equal(t, "name: This field is required.; price: A valid number is required.", fe.Error())
}
