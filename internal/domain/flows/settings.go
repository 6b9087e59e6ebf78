package flows

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"gorm.io/datatypes"
)

// FlowSettings is stored as JSON on every flow version.
type FlowSettings struct {
	AllowSkipping               bool        `json:"allow_skipping" yaml:"allow_skipping"`
	RequireSequentialCompletion bool        `json:"require_sequential_completion" yaml:"require_sequential_completion"`
	MaxAttempts                 int         `json:"max_attempts" yaml:"max_attempts"`
	TimeToCompleteDays          int         `json:"time_to_complete_days" yaml:"time_to_complete_days"`
	RetryPolicy                 RetryPolicy `json:"retry_policy" yaml:"retry_policy"`
}

func DefaultFlowSettings() FlowSettings {
	return FlowSettings{RetryPolicy: RetryPerComponent}
}

func (s FlowSettings) Normalized() FlowSettings {
	switch RetryPolicy(strings.ToLower(strings.TrimSpace(string(s.RetryPolicy)))) {
	case RetryNever:
		s.RetryPolicy = RetryNever
	case RetryAlways:
		s.RetryPolicy = RetryAlways
	default:
		s.RetryPolicy = RetryPerComponent
	}
	if s.MaxAttempts < 0 {
		s.MaxAttempts = 0
	}
	if s.TimeToCompleteDays < 0 {
		s.TimeToCompleteDays = 0
	}
	return s
}

func DecodeFlowSettings(raw datatypes.JSON) FlowSettings {
	s := DefaultFlowSettings()
	if len(raw) == 0 {
		return s
	}
	_ = json.Unmarshal(raw, &s)
	return s.Normalized()
}

func EncodeFlowSettings(s FlowSettings) datatypes.JSON {
	b, _ := json.Marshal(s.Normalized())
	return datatypes.JSON(b)
}

const (
	SettingPassThreshold = "pass_threshold"
	SettingMaxAttempts   = "max_attempts"
	SettingAllowRetry    = "allow_retry"
	SettingAnswerKey     = "answer_key"
)

const (
	DefaultQuizPassThreshold = 70.0
	DefaultTaskPassThreshold = 0.0
)

// ComponentSettings holds the type-specific settings of a component.
type ComponentSettings map[string]any

func DecodeComponentSettings(raw datatypes.JSON) ComponentSettings {
	out := ComponentSettings{}
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

func EncodeComponentSettings(s ComponentSettings) datatypes.JSON {
	if s == nil {
		s = ComponentSettings{}
	}
	b, _ := json.Marshal(s)
	return datatypes.JSON(b)
}

func (s ComponentSettings) Float(key string) (float64, bool) {
	v, ok := s[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func (s ComponentSettings) Int(key string) (int, bool) {
	f, ok := s.Float(key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func (s ComponentSettings) Bool(key string) (bool, bool) {
	v, ok := s[key]
	if !ok || v == nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	}
	return false, false
}

func (s ComponentSettings) Map(key string) map[string]any {
	if m, ok := s[key].(map[string]any); ok {
		return m
	}
	return nil
}

// PassThreshold falls back to 70 for quizzes and 0 for tasks.
func (s ComponentSettings) PassThreshold(t ComponentType) float64 {
	if v, ok := s.Float(SettingPassThreshold); ok {
		return v
	}
	if t == ComponentQuiz {
		return DefaultQuizPassThreshold
	}
	return DefaultTaskPassThreshold
}

// MaxAttempts prefers the component setting over the flow setting; 0 means unlimited.
func (s ComponentSettings) MaxAttempts(flow FlowSettings) int {
	if v, ok := s.Int(SettingMaxAttempts); ok && v > 0 {
		return v
	}
	if flow.MaxAttempts > 0 {
		return flow.MaxAttempts
	}
	return 0
}

func (s ComponentSettings) RetryAllowed(flow FlowSettings) bool {
	switch flow.Normalized().RetryPolicy {
	case RetryNever:
		return false
	case RetryAlways:
		return true
	}
	allow, _ := s.Bool(SettingAllowRetry)
	return allow
}

func EncodeTags(tags []string) datatypes.JSON {
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	b, _ := json.Marshal(clean)
	return datatypes.JSON(b)
}

func DecodeTags(raw datatypes.JSON) []string {
	var out []string
	if len(raw) == 0 {
		return []string{}
	}
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func MergeData(raw datatypes.JSON, patch map[string]any) datatypes.JSON {
	base := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &base)
	}
	for k, v := range patch {
		base[k] = v
	}
	b, _ := json.Marshal(base)
	return datatypes.JSON(b)
}
