package gcp

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// WorkflowTarget names a Cloud Workflow.
type WorkflowTarget struct {
	ProjectID  string
	Location   string
	WorkflowID string
}

func (w WorkflowTarget) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s/workflows/%s", w.ProjectID, w.Location, w.WorkflowID)
}

// TriggerWorkflow starts an execution with payload as its JSON argument and
// returns the execution name.
func TriggerWorkflow(ctx context.Context, client *executions.Client, target WorkflowTarget, payload any) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: target.parent(),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	exec, err := client.CreateExecution(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return exec.GetName(), nil
}
