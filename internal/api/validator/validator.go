// Package validator holds request validation shared by the handlers.
package validator

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/wcag-monitor/internal/model"
	"github.com/wcag-monitor/internal/scanner"
)

var registerOnce sync.Once

// Register adds the custom binding tags to gin's validator. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("wcag_standard", func(fl validator.FieldLevel) bool {
				return model.IsValidStandard(fl.Field().String())
			})
		}
	})
}

// Headers normalizes header input. Malformed JSON is rejected.
func Headers(raw json.RawMessage) (model.Headers, error) {
	headers, err := model.ParseHeaderInput(raw)
	if err != nil {
		return nil, fmt.Errorf("header input contains invalid JSON: %w", err)
	}
	return headers, nil
}

// Actions normalizes action input and checks every entry against the action
// grammar. All invalid entries are reported together.
func Actions(raw json.RawMessage) (model.StringList, error) {
	actions, err := model.ParseStringListInput(raw)
	if err != nil {
		return nil, fmt.Errorf("actions: %w", err)
	}
	if _, err := scanner.ParseActions(actions); err != nil {
		return nil, err
	}
	return actions, nil
}
