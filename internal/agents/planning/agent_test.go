package planning

import (
	"testing"

	"logforensics/pkg/types"

	"github.com/stretchr/testify/assert"
)

func fileProject() types.ProjectDescriptor {
	return types.ProjectDescriptor{Code: "mfs", Name: "MFS", LogSourceKind: types.LogSourceFile}
}

func remoteProject() types.ProjectDescriptor {
	return types.ProjectDescriptor{Code: "mfs-remote", Name: "MFS Remote", LogSourceKind: types.LogSourceRemote}
}

func TestPlanCanProceedWithFullParameters(t *testing.T) {
	a := NewAgent()
	params := types.SearchParameters{TimeFrame: "2025-07-24", Domain: "BKASH", QueryKeys: []string{"failed"}}

	plan := a.Plan(params, fileProject())

	assert.True(t, plan.CanProceed)
	assert.Empty(t, plan.BlockingQuestions)
	assert.NotEmpty(t, plan.Steps)
	assert.NotEmpty(t, plan.ExpectedArtifacts)
}

func TestPlanBlocksOnMissingTimeFrame(t *testing.T) {
	a := NewAgent()
	params := types.SearchParameters{Domain: "BKASH", QueryKeys: []string{"failed"}}

	plan := a.Plan(params, fileProject())

	assert.False(t, plan.CanProceed)
	assert.Len(t, plan.BlockingQuestions, 1)
	assert.Empty(t, plan.Steps)
}

func TestPlanBlocksOnMissingQueryKeys(t *testing.T) {
	a := NewAgent()
	params := types.SearchParameters{TimeFrame: "2025-07-24", Domain: "BKASH"}

	plan := a.Plan(params, fileProject())

	assert.False(t, plan.CanProceed)
	assert.Len(t, plan.BlockingQuestions, 1)
}

func TestPlanBlocksOnBothMissing(t *testing.T) {
	a := NewAgent()
	plan := a.Plan(types.SearchParameters{}, fileProject())

	assert.False(t, plan.CanProceed)
	assert.Len(t, plan.BlockingQuestions, 2)
}

func TestPlanWarnsOnRemoteProjectWithoutTimeFrame(t *testing.T) {
	a := NewAgent()
	params := types.SearchParameters{Domain: "BKASH", QueryKeys: []string{"failed"}}

	plan := a.Plan(params, remoteProject())

	assert.NotEmpty(t, plan.Warnings)
}

func TestPlanNoWarningForFileProjectWithoutTimeFrame(t *testing.T) {
	a := NewAgent()
	params := types.SearchParameters{Domain: "BKASH", QueryKeys: []string{"failed"}}

	plan := a.Plan(params, fileProject())

	assert.Empty(t, plan.Warnings)
}

func TestPlanAssumptionNotesAbsentDomain(t *testing.T) {
	a := NewAgent()
	params := types.SearchParameters{TimeFrame: "2025-07-24", QueryKeys: []string{"failed"}}

	plan := a.Plan(params, fileProject())

	assert.Contains(t, plan.Assumptions[0], "No domain")
}
