package project

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_Validate(t *testing.T) {
	for _, p := range []Phase{
		PhaseIdeation, PhaseRequirements, PhaseDesign,
		PhaseDevelopment, PhaseTesting, PhaseDeployment,
	} {
		assert.NoError(t, p.Validate(), "phase %s should be valid", p)
	}

	assert.Error(t, Phase("").Validate())
	assert.Error(t, Phase("shipping").Validate())
}

func TestPhase_Next(t *testing.T) {
	assert.Equal(t, PhaseRequirements, PhaseIdeation.Next())
	assert.Equal(t, PhaseDeployment, PhaseTesting.Next())
	// Terminal phase has no forward neighbour.
	assert.Equal(t, PhaseDeployment, PhaseDeployment.Next())
}

func TestTaskPointer_TaggedState(t *testing.T) {
	idle := Idle()
	assert.False(t, idle.Working())
	assert.Equal(t, "", idle.Task())
	assert.Equal(t, "idle", idle.String())

	busy := WorkingOn("write the PRD")
	assert.True(t, busy.Working())
	assert.Equal(t, "write the PRD", busy.Task())
}

func TestTaskPointer_LegacySentinelsCollapseToIdle(t *testing.T) {
	// The original system used "", "idle" and a display placeholder
	// interchangeably as the not-working flag. All three decode to Idle.
	for _, legacy := range []string{`""`, `"idle"`, `"No tasks currently assigned"`} {
		var tp TaskPointer
		require.NoError(t, json.Unmarshal([]byte(legacy), &tp), "input %s", legacy)
		assert.False(t, tp.Working(), "input %s should decode to idle", legacy)
	}
}

func TestTaskPointer_JSONRoundTrip(t *testing.T) {
	busy := WorkingOn("implement checkout")

	data, err := json.Marshal(busy)
	require.NoError(t, err)
	assert.Equal(t, `"implement checkout"`, string(data))

	var decoded TaskPointer
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, busy, decoded)

	idleData, err := json.Marshal(Idle())
	require.NoError(t, err)
	assert.Equal(t, `"idle"`, string(idleData))
}

func TestGuideline_Validate(t *testing.T) {
	valid := Guideline{Trigger: "deploy failure", Condition: "migrations pending", Rule: "migrate first"}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Guideline{Condition: "c", Rule: "r"}.Validate())
	assert.Error(t, Guideline{Trigger: "t", Condition: "c"}.Validate())
}

func TestState_CloneIsIndependent(t *testing.T) {
	state := NewState("shop")
	state.Agents["builder"] = &AgentContext{
		Current:   WorkingOn("scaffold"),
		NextTasks: []string{"tests"},
	}
	state.Documents["prd"] = DocumentRecord{Title: "PRD", Content: "v1"}
	state.KnowledgeBase.Guidelines = append(state.KnowledgeBase.Guidelines,
		Guideline{Trigger: "t", Condition: "c", Rule: "r"})

	clone := state.Clone()

	// Mutate the clone in every collection.
	clone.Phase = PhaseTesting
	clone.Agents["builder"].Current = Idle()
	clone.Agents["builder"].NextTasks[0] = "changed"
	clone.Documents["prd"] = DocumentRecord{Title: "PRD", Content: "v2"}
	clone.KnowledgeBase.Guidelines[0].Rule = "changed"
	clone.Agents["qa"] = &AgentContext{}

	// The original is untouched.
	assert.Equal(t, PhaseIdeation, state.Phase)
	assert.True(t, state.Agents["builder"].Current.Working())
	assert.Equal(t, "tests", state.Agents["builder"].NextTasks[0])
	assert.Equal(t, "v1", state.Documents["prd"].Content)
	assert.Equal(t, "r", state.KnowledgeBase.Guidelines[0].Rule)
	assert.NotContains(t, state.Agents, "qa")
}

func TestState_Validate(t *testing.T) {
	state := NewState("shop")
	assert.NoError(t, state.Validate())

	state.Phase = Phase("bogus")
	assert.Error(t, state.Validate())

	state = NewState("shop")
	state.ID = ""
	assert.Error(t, state.Validate())
}

func TestState_JSONRoundTrip(t *testing.T) {
	state := NewState("shop")
	state.OwnerID = "u1"
	state.Agents["planner"] = &AgentContext{
		Current:         WorkingOn("define mvp"),
		NextTasks:       []string{"write prd"},
		NeedsFromOthers: []string{},
	}
	state.LastUpdatedMs = 1700000000000

	data, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded State
	require.NoError(t, json.Unmarshal(data, &decoded))
	decoded.normalize()

	assert.Equal(t, state, &decoded)
}
