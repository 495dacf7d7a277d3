package types

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Outcome 单次执行的最终结果
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// TaskInvocation is created per call and owned by the executor for one run.
type TaskInvocation struct {
	InvocationID string    `json:"invocation_id"`
	CaseID       string    `json:"case_id"`
	TaskName     string    `json:"task_name"`
	AgentRole    string    `json:"agent_role"`
	StartedAt    time.Time `json:"started_at"`
}

// DecisionPoint is one traced decision inside an invocation.
type DecisionPoint struct {
	Description string    `json:"description"`
	Rationale   string    `json:"rationale"`
	Confidence  float64   `json:"confidence"`
	Timestamp   time.Time `json:"timestamp"`
}

// ExecutionResult is produced once per invocation and never mutated after
// it is returned.
type ExecutionResult struct {
	InvocationID  string          `json:"invocation_id"`
	CaseID        string          `json:"case_id"`
	TaskName      string          `json:"task_name"`
	AgentRole     string          `json:"agent_role"`
	Outcome       Outcome         `json:"outcome"`
	Duration      time.Duration   `json:"duration"`
	Output        any             `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	ErrorCategory string          `json:"error_category,omitempty"`
	Attempts      int             `json:"attempts"`
	RetryCount    int             `json:"retry_count"`
	FellBack      bool            `json:"fell_back,omitempty"`
	Decisions     []DecisionPoint `json:"decisions,omitempty"`
}

// Succeeded reports whether the invocation ended in success.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

// SkillID derives the stable skill identifier for a case. The slug keeps the
// id readable and the hash suffix keeps distinct case ids from colliding
// after slugging.
func SkillID(caseID string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(caseID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > 48 {
		slug = strings.TrimSuffix(slug[:48], "-")
	}

	sum := sha256.Sum256([]byte(caseID))
	suffix := hex.EncodeToString(sum[:4])
	if slug == "" {
		return "skill-" + suffix
	}
	return "skill-" + slug + "-" + suffix
}
