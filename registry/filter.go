package registry

import (
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/signadot/sessiond/api"
)

// Filter is a compiled boolean expression over a session's fields. The
// expression sees these variables:
//
//	session_id    string
//	user_id       string
//	status        string
//	current_task  string
//	progress      float64
//	idle_seconds  float64
//
// Example: `status == "active" && progress < 0.5`.
type Filter struct {
	src  string
	prog *vm.Program
}

// CompileFilter compiles src into a Filter. The expression must yield a
// boolean.
func CompileFilter(src string) (*Filter, error) {
	prog, err := expr.Compile(src,
		expr.Env(filterEnv(&api.SessionInfo{}, time.Time{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compiling filter %q: %w", src, err)
	}
	return &Filter{src: src, prog: prog}, nil
}

// Match evaluates the filter against one session. now anchors idle_seconds.
func (f *Filter) Match(info *api.SessionInfo, now time.Time) (bool, error) {
	out, err := vm.Run(f.prog, filterEnv(info, now))
	if err != nil {
		return false, fmt.Errorf("evaluating filter %q: %w", f.src, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("filter %q yielded %T, want bool", f.src, out)
	}
	return b, nil
}

func (f *Filter) String() string { return f.src }

func filterEnv(info *api.SessionInfo, now time.Time) map[string]any {
	idle := 0.0
	if !info.LastActivity.IsZero() {
		idle = now.Sub(info.LastActivity).Seconds()
	}
	return map[string]any{
		"session_id":   info.SessionID,
		"user_id":      info.UserID,
		"status":       info.Status,
		"current_task": info.CurrentTask,
		"progress":     info.Progress,
		"idle_seconds": idle,
	}
}
