// Package planning implements C8: a feasibility check over the extracted
// search parameters, producing a structured plan the orchestrator (and, via
// the plan-preview endpoint, the client) can inspect before committing to
// the rest of the pipeline.
package planning

import (
	"fmt"

	"logforensics/pkg/types"
)

// Agent is C8. It has no LLM or cache dependency: the plan is derived
// entirely from SearchParameters and the target project, per spec.md
// section 4.8 — deterministic feasibility checking, not generation.
type Agent struct{}

// NewAgent constructs the planning agent.
func NewAgent() *Agent {
	return &Agent{}
}

// Plan produces a structured feasibility plan for the given parameters and
// target project. can_proceed is false when either time_frame or query_keys
// is missing, with a corresponding blocking question appended for each.
// Remote-log projects without a time frame additionally get a warning that
// the acquisition step will fail (an unbounded Loki range query is not
// attempted).
func (a *Agent) Plan(params types.SearchParameters, project types.ProjectDescriptor) types.Plan {
	plan := types.Plan{
		Goal:       planGoal(params),
		CanProceed: true,
	}

	if !params.HasTimeFrame() {
		plan.CanProceed = false
		plan.BlockingQuestions = append(plan.BlockingQuestions,
			"What date should be investigated? A specific calendar date is required to scope the log search.")
	}
	if len(params.QueryKeys) == 0 {
		plan.CanProceed = false
		plan.BlockingQuestions = append(plan.BlockingQuestions,
			"What transaction type or failure mode should be searched for? At least one query key is required.")
	}

	if params.Domain != "" {
		plan.Assumptions = append(plan.Assumptions, fmt.Sprintf("Domain is %s.", params.Domain))
	} else {
		plan.Assumptions = append(plan.Assumptions, "No domain was extracted; the search will not be domain-scoped.")
	}

	if project.LogSourceKind == types.LogSourceRemote && !params.HasTimeFrame() {
		plan.Warnings = append(plan.Warnings,
			"Project "+project.Code+" is a remote log source; without a time frame, log acquisition will fail.")
	}

	if !plan.CanProceed {
		return plan
	}

	plan.Steps = []string{
		"Acquire candidate log bodies for the resolved time window.",
		"Discover trace identifiers present in the acquired bodies.",
		"Compile a per-trace timeline for each discovered trace identifier.",
		"Analyze each trace bundle and write per-trace and master reports.",
		"Score each trace's relevance against the request.",
	}
	plan.ExpectedArtifacts = []string{
		"One comprehensive report per discovered trace identifier.",
		"One master summary report aggregating all traces.",
		"A relevance ranking across all discovered traces.",
	}
	plan.ReplanTriggers = []string{
		"Zero trace identifiers discovered in the acquired log bodies.",
		"Log acquisition returns zero results for the resolved time window.",
	}

	return plan
}

func planGoal(params types.SearchParameters) string {
	domain := params.Domain
	if domain == "" {
		domain = "an unspecified domain"
	}
	return fmt.Sprintf("Investigate %s activity matching %v.", domain, params.QueryKeys)
}
