package logsvc

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST", TestMode: true})

	usr := user.User{ID: "u1", Name: "Jane Doe", Email: "jane@jkkn.ac.in"}
	l.Warn("entity kind skipped", errors.New("boom"), map[string]interface{}{"run": "r1", "kind": "department"}, usr)

	// errors are printed with their stack trace
	want := "WARN: entity kind skipped kind=department run=r1 user=jane@jkkn.ac.in\nboom\n"
	if got := buf.String(); !strings.HasPrefix(got, want) {
		t.Errorf("Warn() printed %q, want it to start with %q", got, want)
	}
}

func TestRollbarLogger_prepare(t *testing.T) {
	l := RollbarLogger{}
	err := errors.New("boom")

	got := l.prepare("msg", []interface{}{err, map[string]interface{}{"a": 1}, user.User{ID: "u1"}, map[string]interface{}{"b": 2}})
	if len(got) != 3 {
		t.Fatalf("prepare() = %v, want msg, error & extras", got)
	}
	if got[0] != "msg" || got[1] != err {
		t.Errorf("prepare() = %v, want msg & error first", got)
	}
	extras, ok := got[2].(map[string]interface{})
	if !ok || len(extras) != 2 || extras["a"] != 1 || extras["b"] != 2 {
		t.Errorf("prepare() extras = %v, want the merged maps", got[2])
	}
	if s := l.format("INFO", "msg", []interface{}{"plain"}); !strings.HasSuffix(s, "\nplain") {
		t.Errorf("format() = %q, want the plain arg on its own line", s)
	}
}
