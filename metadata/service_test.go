package metadata

import (
	"os"
	"path/filepath"
	"testing"

	api "github.com/mohitkumar/stepflow/api/v1"
	"github.com/mohitkumar/stepflow/model"
	"github.com/stretchr/testify/require"
)

func twoStepWorkflow(id string) model.Workflow {
	return model.Workflow{
		Id:          id,
		Steps:       []model.Step{{Id: "a"}, {Id: "b"}},
		Transitions: []model.Transition{{From: "a", To: "b", Condition: "always"}},
	}
}

func TestMetadataService(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, svc MetadataService){
		"save and get flow": func(t *testing.T, svc MetadataService) {
			require.NoError(t, svc.SaveFlow(twoStepWorkflow("wf")))
			fl, err := svc.GetFlow("wf")
			require.NoError(t, err)
			require.Equal(t, "a", fl.RootStep)
			cached, err := svc.GetFlow("wf")
			require.NoError(t, err)
			require.Same(t, fl, cached)
		},
		"save replaces cached flow": func(t *testing.T, svc MetadataService) {
			require.NoError(t, svc.SaveFlow(twoStepWorkflow("wf")))
			_, err := svc.GetFlow("wf")
			require.NoError(t, err)
			wf := twoStepWorkflow("wf")
			wf.Steps = []model.Step{{Id: "b"}, {Id: "a"}}
			require.NoError(t, svc.SaveFlow(wf))
			fl, err := svc.GetFlow("wf")
			require.NoError(t, err)
			require.Equal(t, "b", fl.RootStep)
		},
		"invalid definition is rejected": func(t *testing.T, svc MetadataService) {
			wf := twoStepWorkflow("wf")
			wf.Transitions = append(wf.Transitions, model.Transition{From: "a", To: "ghost"})
			err := svc.SaveFlow(wf)
			var defErr api.DefinitionError
			require.ErrorAs(t, err, &defErr)
			ids, err := svc.GetMetadataStorage().ListWorkflowDefinitions()
			require.NoError(t, err)
			require.Empty(t, ids)
		},
		"unknown workflow": func(t *testing.T, svc MetadataService) {
			_, err := svc.GetFlow("nope")
			var notFound api.WorkflowNotFoundError
			require.ErrorAs(t, err, &notFound)
		},
		"delete": func(t *testing.T, svc MetadataService) {
			require.NoError(t, svc.SaveFlow(twoStepWorkflow("wf")))
			_, err := svc.GetFlow("wf")
			require.NoError(t, err)
			require.NoError(t, svc.DeleteFlow("wf"))
			_, err = svc.GetFlow("wf")
			var notFound api.WorkflowNotFoundError
			require.ErrorAs(t, err, &notFound)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, NewMetadataService(NewMemoryMetadataStorage()))
		})
	}
}

const bookingYaml = `
id: booking
name: Flight booking
steps:
  - id: query
    actions:
      - type: search
        from: "{{origin}}"
        timeoutMs: 2000
  - id: select
    type: decision
    decision:
      selectionPaths: ["$.flightId", "id"]
  - id: book
transitions:
  - from: query
    to: select
    condition: always
  - from: select
    to: book
    expression: context.decision != null
`

const paymentJson = `{
  "id": "payment",
  "steps": [{"id": "charge", "actions": [{"type": "charge"}]}],
  "transitions": []
}`

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "booking.yaml"), []byte(bookingYaml), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payment.json"), []byte(paymentJson), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0644))

	svc := NewMetadataService(NewMemoryMetadataStorage())
	n, err := LoadDirectory(svc, dir)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	fl, err := svc.GetFlow("booking")
	require.NoError(t, err)
	step, ok := fl.Step("query")
	require.True(t, ok)
	require.Equal(t, "search", step.Actions[0].Type())
	require.Equal(t, "{{origin}}", step.Actions[0]["from"])
	require.Len(t, fl.Selectors("select"), 2)

	ids, err := svc.GetMetadataStorage().ListWorkflowDefinitions()
	require.NoError(t, err)
	require.Equal(t, []string{"booking", "payment"}, ids)
}

func TestLoadDirectoryRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("id: bad\nsteps: []\n"), 0644))
	_, err := LoadDirectory(NewMetadataService(NewMemoryMetadataStorage()), dir)
	var defErr api.DefinitionError
	require.ErrorAs(t, err, &defErr)
}
