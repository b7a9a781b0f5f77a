// Package deployment provides pure functions for deployment runs.
//
// This package contains the functional core logic for tracking a deployment
// run through the remote provisioning sequence and for naming the resources
// a run creates. All functions are pure (no I/O, no side effects).
//
// # Functions
//
//   - Runs: Track progress through the provisioning states (NewRun, Transition)
//   - Naming: Generate consistent resource names (ObjectKey, FunctionName, GatewayName)
//
// # Usage
//
// The imperative shell (internal/shell/orchestrator) records a run for every
// deploy, update or undeploy and advances it as each remote step succeeds.
//
//	run, _ := deployment.NewRun(deployment.KindDeploy, slug, deployment.StateNoFunction)
//	run.SetStep(deployment.StepFunction)
//	_ = run.Transition(deployment.StateFunctionExists)
package deployment
