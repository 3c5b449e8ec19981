package main

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/orian/querybuilder/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRequestToAction(t *testing.T) {
	typ, value := "hits", "10"
	tests := []struct {
		name string
		req  actionRequest
		want models.Action
	}{
		{"setQuery", actionRequest{Kind: "setQuery", Input: `{"hits":1}`}, models.SetQuery{Input: `{"hits":1}`}},
		{"setMethod", actionRequest{Kind: "setMethod", Method: "GET"}, models.SetMethod{Method: models.MethodGet}},
		{"setUrl", actionRequest{Kind: "setUrl", URL: "http://search/"}, models.SetURL{URL: "http://search/"}},
		{"inputAdd", actionRequest{Kind: "inputAdd", ParentID: "1", Type: &typ}, models.InputAdd{ParentID: "1", Type: "hits"}},
		{"inputUpdate", actionRequest{Kind: "inputUpdate", ID: "0", Value: &value}, models.InputUpdate{ID: "0", Value: &value}},
		{"inputRemove", actionRequest{Kind: "inputRemove", ID: "2.1"}, models.InputRemove{ID: "2.1"}},
	}

	validate := validator.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, validate.Struct(&tt.req))
			got, err := tt.req.toAction()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.name, models.ActionKind(got))
		})
	}
}

func TestActionRequestValidation(t *testing.T) {
	validate := validator.New()
	tests := []struct {
		name string
		req  actionRequest
	}{
		{"empty kind", actionRequest{}},
		{"setHttp", actionRequest{Kind: "setHttp"}},
		{"lower case method", actionRequest{Kind: "setMethod", Method: "get"}},
		{"missing method", actionRequest{Kind: "setMethod"}},
		{"missing type", actionRequest{Kind: "inputAdd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validate.Struct(&tt.req))
		})
	}

	_, err := (&actionRequest{Kind: "inputAdd"}).toAction()
	assert.Error(t, err)
}
