// Package policy evaluates permission records against Rego policies and
// reports risky grants as findings.
//
// OBSERVABILITY ONLY: findings are recommendations attached to scan
// responses. The engine never modifies permissions or reports.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/karhu-io/aclscan/telemetry"
	"github.com/karhu-io/aclscan/types"
)

// DefaultPolicyName identifies the built-in risky-grants policy.
const DefaultPolicyName = "risky_grants.rego"

// defaultPolicy flags the grants an auditor always wants to see first:
// broad principals holding Full Control, explicit denies, and folders that
// could not be enumerated at all.
const defaultPolicy = `package aclscan

broad_principals := {"everyone", "authenticated users", "builtin\\users", "users"}

findings contains f if {
	input.record.entry_type == "Allow"
	contains(input.record.permissions, "Full Control")
	broad_principals[lower(input.record.principal)]
	f := {
		"risk": "high",
		"reason": sprintf("Full Control granted to broad principal %s", [input.record.principal]),
	}
}

findings contains f if {
	input.record.entry_type == "Deny"
	f := {
		"risk": "medium",
		"reason": sprintf("explicit deny for %s", [input.record.principal]),
	}
}

findings contains f if {
	input.record.entry_type == "Error"
	f := {
		"risk": "medium",
		"reason": "folder permissions could not be enumerated",
	}
}
`

// Finding is one policy hit against a record.
type Finding struct {
	FolderPath string `json:"folder_path"`
	Principal  string `json:"principal"`
	Risk       string `json:"risk"` // "high", "medium", "low"
	Reason     string `json:"reason"`
	Policy     string `json:"policy"`
}

// Input is the document each policy sees.
type Input struct {
	Record    types.Record `json:"record"`
	Timestamp time.Time    `json:"timestamp"`
}

// Engine evaluates records against compiled Rego policies.
type Engine struct {
	logger  *telemetry.Logger
	tracer  trace.Tracer
	queries map[string]rego.PreparedEvalQuery
}

// NewEngine creates an engine with no policies loaded.
func NewEngine() *Engine {
	return &Engine{
		logger:  telemetry.NewLogger("policy-engine"),
		tracer:  otel.Tracer("policy-engine"),
		queries: make(map[string]rego.PreparedEvalQuery),
	}
}

// LoadDefault loads the built-in risky-grants policy.
func (e *Engine) LoadDefault(ctx context.Context) error {
	return e.LoadPolicy(ctx, DefaultPolicyName, defaultPolicy)
}

// LoadPolicy compiles and registers one Rego policy.
func (e *Engine) LoadPolicy(ctx context.Context, name string, regoCode string) error {
	ctx, span := e.tracer.Start(ctx, "policy_engine.load_policy",
		trace.WithAttributes(attribute.String("policy.name", name)))
	defer span.End()

	query := rego.New(
		rego.Query("data.aclscan.findings"),
		rego.Module(name, regoCode),
	)

	prepared, err := query.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to compile policy %s: %w", name, err)
	}

	e.queries[name] = prepared

	e.logger.WithContext(ctx).Info().
		Str("policy_name", name).
		Msg("policy loaded")
	return nil
}

// Evaluate runs every loaded policy over every record and collects findings.
// Evaluation failures for a single record are logged and skipped; one broken
// record must not sink the batch.
func (e *Engine) Evaluate(ctx context.Context, records []types.Record) ([]Finding, error) {
	ctx, span := e.tracer.Start(ctx, "policy_engine.evaluate",
		trace.WithAttributes(attribute.Int("records.count", len(records))))
	defer span.End()

	if len(e.queries) == 0 {
		return nil, nil
	}

	var findings []Finding
	for _, record := range records {
		input := Input{Record: record, Timestamp: time.Now()}

		for name, query := range e.queries {
			rs, err := query.Eval(ctx, rego.EvalInput(input))
			if err != nil {
				e.logger.WithContext(ctx).Error().
					Err(err).
					Str("policy_name", name).
					Str("folder_path", record.FolderPath).
					Msg("policy evaluation failed")
				continue
			}
			findings = append(findings, e.collectFindings(rs, record, name)...)
		}
	}

	span.SetAttributes(attribute.Int("findings.count", len(findings)))
	return findings, nil
}

// collectFindings converts OPA result sets into Findings. OPA returns
// arbitrary JSON shaped by the policy, so this goes through a marshal
// round-trip rather than type switches.
func (e *Engine) collectFindings(rs rego.ResultSet, record types.Record, policyName string) []Finding {
	var findings []Finding
	for _, result := range rs {
		for _, expr := range result.Expressions {
			raw, err := json.Marshal(expr.Value)
			if err != nil {
				continue
			}
			var hits []Finding
			if err := json.Unmarshal(raw, &hits); err != nil {
				continue
			}
			for _, hit := range hits {
				hit.FolderPath = record.FolderPath
				hit.Principal = record.Principal
				hit.Policy = policyName
				findings = append(findings, hit)
			}
		}
	}
	return findings
}
