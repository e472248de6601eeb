package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	userdomain "ticketflow/backend/internal/user/domain"
)

// Default Rego policy: admit every active user; when a session cap is
// configured and reached, evict the oldest session instead of refusing.
const defaultRegoPolicy = `package ticketflow.session_admission

default allow = true
default evict_oldest = false

allow = false if {
	input.user.status != "active"
}

evict_oldest if {
	input.limit.max_sessions > 0
	input.user.active_sessions >= input.limit.max_sessions
}
`

// OPAEvaluator evaluates session-admission policy using OPA Rego.
type OPAEvaluator struct {
	policy string
}

// NewOPAEvaluator returns an OPA-based session-admission evaluator.
// policy overrides the built-in Rego module when non-empty; it must define
// data.ticketflow.session_admission.allow and .evict_oldest.
func NewOPAEvaluator(policy string) *OPAEvaluator {
	if policy == "" {
		policy = defaultRegoPolicy
	}
	return &OPAEvaluator{policy: policy}
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and
// evaluate the configured policy. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := e.compile()
	if err != nil {
		return fmt.Errorf("compile policy: %w", err)
	}
	input := buildInput(&userdomain.User{Status: userdomain.UserStatusActive}, 0, 0)
	q := rego.New(
		rego.Query("data.ticketflow.session_admission.allow"),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// EvaluateAdmission evaluates the session-admission policy. On evaluation
// failure it logs and falls back to a permissive result with cap enforcement,
// so a broken policy cannot lock every user out.
func (e *OPAEvaluator) EvaluateAdmission(ctx context.Context, user *userdomain.User, activeSessions, maxSessions int) (AdmissionResult, error) {
	compiler, err := e.compile()
	if err != nil {
		log.Printf("policy: compile failed: %v, using defaults", err)
		return fallbackResult(activeSessions, maxSessions), nil
	}
	input := buildInput(user, activeSessions, maxSessions)

	out := AdmissionResult{Allow: true}
	if v, ok := e.queryBool(ctx, compiler, "data.ticketflow.session_admission.allow", input); ok {
		out.Allow = v
	}
	if v, ok := e.queryBool(ctx, compiler, "data.ticketflow.session_admission.evict_oldest", input); ok {
		out.EvictOldest = v
	}
	return out, nil
}

func (e *OPAEvaluator) compile() (*ast.Compiler, error) {
	return ast.CompileModules(map[string]string{"session_admission.rego": e.policy})
}

func (e *OPAEvaluator) queryBool(ctx context.Context, compiler *ast.Compiler, query string, input map[string]interface{}) (bool, bool) {
	q := rego.New(
		rego.Query(query),
		rego.Compiler(compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		if err != nil {
			log.Printf("policy: eval %s failed: %v", query, err)
		}
		return false, false
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	return v, ok
}

func buildInput(user *userdomain.User, activeSessions, maxSessions int) map[string]interface{} {
	userMap := map[string]interface{}{
		"id":              "",
		"role":            "",
		"status":          "",
		"active_sessions": activeSessions,
	}
	if user != nil {
		userMap["id"] = user.ID
		userMap["role"] = string(user.Role)
		userMap["status"] = string(user.Status)
	}
	return map[string]interface{}{
		"user":  userMap,
		"limit": map[string]interface{}{"max_sessions": maxSessions},
	}
}

func fallbackResult(activeSessions, maxSessions int) AdmissionResult {
	return AdmissionResult{
		Allow:       true,
		EvictOldest: maxSessions > 0 && activeSessions >= maxSessions,
	}
}
