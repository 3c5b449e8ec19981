package main

import (
	"fmt"

	"github.com/orian/querybuilder/models"
)

// actionRequest is the wire form of an action posted by the editor.
// setHttp is not accepted here: responses only come from the submitter.
type actionRequest struct {
	Kind     string  `json:"kind" validate:"required,oneof=setQuery setMethod setUrl inputAdd inputUpdate inputRemove"`
	Input    string  `json:"input"`
	Method   string  `json:"method" validate:"required_if=Kind setMethod,omitempty,oneof=POST GET"`
	URL      string  `json:"url"`
	ID       string  `json:"id"`
	ParentID string  `json:"parentId"`
	Type     *string `json:"type" validate:"required_if=Kind inputAdd"`
	Value    *string `json:"value"`
}

func (r *actionRequest) toAction() (models.Action, error) {
	switch r.Kind {
	case "setQuery":
		return models.SetQuery{Input: r.Input}, nil
	case "setMethod":
		return models.SetMethod{Method: models.Method(r.Method)}, nil
	case "setUrl":
		return models.SetURL{URL: r.URL}, nil
	case "inputAdd":
		if r.Type == nil {
			return nil, fmt.Errorf("inputAdd requires a type")
		}
		return models.InputAdd{ParentID: r.ParentID, Type: *r.Type}, nil
	case "inputUpdate":
		return models.InputUpdate{ID: r.ID, Type: r.Type, Value: r.Value}, nil
	case "inputRemove":
		return models.InputRemove{ID: r.ID}, nil
	}
	return nil, fmt.Errorf("unknown action kind %q", r.Kind)
}
