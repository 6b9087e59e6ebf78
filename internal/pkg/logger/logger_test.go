package logger

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

var on = Redaction{Enabled: true}

func TestRedactionHidesSecrets(t *testing.T) {
	for _, key := range []string{"jwt_secret_key", "authorization", "refresh_token"} {
		if got := on.value(key, "abc"); got != "[REDACTED]" {
			t.Fatalf("%s: want=[REDACTED] got=%v", key, got)
		}
	}
	if got := on.value("flow_id", "f-1"); got != "f-1" {
		t.Fatalf("flow_id should pass through, got=%v", got)
	}
	nested := on.value("payload", map[string]interface{}{"password": "x", "title": "Week one"}).(map[string]interface{})
	if nested["password"] != "[REDACTED]" || nested["title"] != "Week one" {
		t.Fatalf("nested: %+v", nested)
	}
}

func TestRedactionHashesPeople(t *testing.T) {
	id := uuid.New()
	a := on.value("user_id", id)
	s, ok := a.(string)
	if !ok || !strings.HasPrefix(s, "hash:") {
		t.Fatalf("expected hashed value, got=%v", a)
	}
	if on.value("buddy_id", id.String()) != a {
		t.Fatalf("uuid and its string form must hash the same")
	}
	salted := Redaction{Enabled: true, Salt: "pepper"}
	if salted.value("user_id", id) == a {
		t.Fatalf("salt must change the hash")
	}
	if off := (Redaction{}).apply([]interface{}{"user_id", "u-1"}); off[1] != "u-1" {
		t.Fatalf("disabled redaction must pass values through")
	}
}

func TestRedactionKeepsOddTrailingValue(t *testing.T) {
	out := on.apply([]interface{}{"flow_id", "f", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected kvs: %+v", out)
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"prod", "test", "dev"} {
		l, err := NewWithRedaction(mode, on)
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		l.With("component", "test", "actor_id", uuid.New()).Debug("hello", "k", "v")
	}
	NewNop().Info("discarded")
}
