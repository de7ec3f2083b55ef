package scanner

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

type ActionKind string

const (
	ActionClick          ActionKind = "click"
	ActionSetField       ActionKind = "set-field"
	ActionClearField     ActionKind = "clear-field"
	ActionCheckField     ActionKind = "check-field"
	ActionUncheckField   ActionKind = "uncheck-field"
	ActionScreenCapture  ActionKind = "screen-capture"
	ActionWaitForElement ActionKind = "wait-for-element-state"
	ActionWaitForEvent   ActionKind = "wait-for-element-event"
	ActionWaitForURL     ActionKind = "wait-for-url"
	ActionNavigate       ActionKind = "navigate-url"
)

// Action is one parsed pre-scan automation step.
type Action struct {
	Kind     ActionKind
	Raw      string
	Selector string
	// Value is the field value, capture path, expected url part or navigation target.
	Value string
	// State is added, removed, visible or hidden for element waits.
	State string
	// Subject is url, path, fragment, hash or host for url waits.
	Subject string
	Negate  bool
	Event   string
}

type actionRule struct {
	kind  ActionKind
	re    *regexp.Regexp
	build func(m []string) Action
}

// Order matters: the element state rule must win over the event rule.
var actionRules = []actionRule{
	{ActionNavigate, regexp.MustCompile(`(?i)^navigate to(?: url)? (.+)$`), func(m []string) Action {
		return Action{Value: m[1]}
	}},
	{ActionClick, regexp.MustCompile(`(?i)^click(?: element)? (.+)$`), func(m []string) Action {
		return Action{Selector: m[1]}
	}},
	{ActionSetField, regexp.MustCompile(`(?i)^set field (.+?) to (.+)$`), func(m []string) Action {
		return Action{Selector: m[1], Value: m[2]}
	}},
	{ActionClearField, regexp.MustCompile(`(?i)^clear field (.+)$`), func(m []string) Action {
		return Action{Selector: m[1]}
	}},
	{ActionCheckField, regexp.MustCompile(`(?i)^check field (.+)$`), func(m []string) Action {
		return Action{Selector: m[1]}
	}},
	{ActionUncheckField, regexp.MustCompile(`(?i)^uncheck field (.+)$`), func(m []string) Action {
		return Action{Selector: m[1]}
	}},
	{ActionScreenCapture, regexp.MustCompile(`(?i)^(?:screen[ -]?capture|capture screen) (.+)$`), func(m []string) Action {
		return Action{Value: m[1]}
	}},
	{ActionWaitForURL, regexp.MustCompile(`(?i)^wait for (fragment|hash|host|path|url) to (not )?be (.+)$`), func(m []string) Action {
		return Action{Subject: strings.ToLower(m[1]), Negate: m[2] != "", Value: m[3]}
	}},
	{ActionWaitForElement, regexp.MustCompile(`(?i)^wait for element (.+?) to be (added|removed|visible|hidden)$`), func(m []string) Action {
		return Action{Selector: m[1], State: strings.ToLower(m[2])}
	}},
	{ActionWaitForEvent, regexp.MustCompile(`(?i)^wait for element (.+?) to emit (.+)$`), func(m []string) Action {
		return Action{Selector: m[1], Event: m[2]}
	}},
}

// ParseAction parses one action string. It returns an error when the string
// matches no known action.
func ParseAction(raw string) (Action, error) {
	text := strings.TrimSpace(raw)
	for _, rule := range actionRules {
		if m := rule.re.FindStringSubmatch(text); m != nil {
			action := rule.build(m)
			action.Kind = rule.kind
			action.Raw = raw
			if action.Kind == ActionScreenCapture && !isPlainFileName(action.Value) {
				return Action{}, fmt.Errorf("invalid action: %q: capture path must be a relative file name", raw)
			}
			return action, nil
		}
	}
	return Action{}, fmt.Errorf("invalid action: %q", raw)
}

// isPlainFileName rejects absolute paths and parent directory references in
// either separator style.
func isPlainFileName(name string) bool {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	if len(name) >= 2 && name[1] == ':' {
		return false
	}
	for _, part := range strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return false
		}
	}
	return true
}

// IsValidAction reports whether raw is a well formed action.
func IsValidAction(raw string) bool {
	_, err := ParseAction(raw)
	return err == nil
}

// InvalidActionsError lists every action that failed to parse.
type InvalidActionsError struct {
	Actions []string
}

func (e *InvalidActionsError) Error() string {
	quoted := make([]string, len(e.Actions))
	for i, a := range e.Actions {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	if len(quoted) == 1 {
		return "invalid action: " + quoted[0]
	}
	return "invalid actions: " + strings.Join(quoted, ", ")
}

// ParseActions parses the whole list and reports all invalid entries at once.
func ParseActions(raw []string) ([]Action, error) {
	actions := make([]Action, 0, len(raw))
	var invalid []string
	for _, r := range raw {
		action, err := ParseAction(r)
		if err != nil {
			invalid = append(invalid, r)
			continue
		}
		actions = append(actions, action)
	}
	if len(invalid) > 0 {
		return nil, &InvalidActionsError{Actions: invalid}
	}
	return actions, nil
}
