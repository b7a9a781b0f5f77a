package deployment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Run Errors
// =============================================================================

var (
	ErrProjectSlugRequired = errors.New("project slug is required")
	ErrInvalidRunKind      = errors.New("invalid run kind")
	ErrInvalidRunState     = errors.New("invalid run state")
	ErrInvalidTransition   = errors.New("invalid run state transition")
)

// =============================================================================
// Run Kind
// =============================================================================

// Kind is the command a run was recorded for.
type Kind string

const (
	KindDeploy        Kind = "deploy"
	KindUpdate        Kind = "update"
	KindUpdateGateway Kind = "update-gateway"
	KindUndeploy      Kind = "undeploy"
)

// IsValid checks if the run kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindDeploy, KindUpdate, KindUpdateGateway, KindUndeploy:
		return true
	default:
		return false
	}
}

// =============================================================================
// Run State
// =============================================================================

// State is how far the remote provisioning sequence has progressed.
type State string

const (
	StateNoFunction       State = "no_function"
	StateFunctionExists   State = "function_exists"
	StateVersionPublished State = "version_published"
	StateGatewayWired     State = "gateway_wired"
	StateRemoved          State = "removed"
	StateFailed           State = "failed"
)

// IsValid checks if the state is known.
func (s State) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// IsTerminal returns true if no further transitions are possible.
func (s State) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// validTransitions defines the allowed state transitions.
// FunctionExists may go straight to GatewayWired when only the gateway is
// rewired, and any live state may be torn down.
var validTransitions = map[State][]State{
	StateNoFunction:       {StateFunctionExists, StateRemoved, StateFailed},
	StateFunctionExists:   {StateVersionPublished, StateGatewayWired, StateRemoved, StateFailed},
	StateVersionPublished: {StateGatewayWired, StateFailed},
	StateGatewayWired:     {},
	StateRemoved:          {},
	StateFailed:           {},
}

// ValidateTransition checks if a run state transition is valid.
func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return ErrInvalidTransition
}

// =============================================================================
// Run Steps
// =============================================================================

// Step names recorded in Run.CurrentStep. A failed run keeps the step it
// failed in.
const (
	StepPreflight = "preflight"
	StepBucket    = "bucket"
	StepBuild     = "build"
	StepUpload    = "upload"
	StepFunction  = "function"
	StepVersion   = "version"
	StepGateway   = "gateway"
	StepTeardown  = "teardown"
)

// =============================================================================
// Run
// =============================================================================

// Run records one invocation of the provisioning sequence for a project.
type Run struct {
	ID           string     `json:"id"`
	Kind         Kind       `json:"kind"`
	ProjectSlug  string     `json:"project_slug"`
	State        State      `json:"state"`
	CurrentStep  string     `json:"current_step,omitempty"`
	FunctionID   string     `json:"function_id,omitempty"`
	VersionID    string     `json:"version_id,omitempty"`
	GatewayID    string     `json:"gateway_id,omitempty"`
	Bucket       string     `json:"bucket,omitempty"`
	ObjectKey    string     `json:"object_key,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// GenerateRunID generates a new run ID.
func GenerateRunID() string {
	return "run_" + uuid.New().String()[:8]
}

// NewRun creates a run starting in the given state.
func NewRun(kind Kind, slug string, initial State) (*Run, error) {
	if slug == "" {
		return nil, ErrProjectSlugRequired
	}
	if !kind.IsValid() {
		return nil, ErrInvalidRunKind
	}
	if !initial.IsValid() || initial.IsTerminal() {
		return nil, ErrInvalidRunState
	}

	now := time.Now()
	return &Run{
		ID:          GenerateRunID(),
		Kind:        kind,
		ProjectSlug: slug,
		State:       initial,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Transition attempts to move the run to a new state.
func (r *Run) Transition(to State) error {
	if err := ValidateTransition(r.State, to); err != nil {
		return err
	}
	r.State = to
	r.UpdatedAt = time.Now()

	if to.IsTerminal() {
		now := time.Now()
		r.CompletedAt = &now
	}
	return nil
}

// TransitionToFailed sets failed status with error message.
func (r *Run) TransitionToFailed(errorMessage string) error {
	if err := ValidateTransition(r.State, StateFailed); err != nil {
		return err
	}
	now := time.Now()
	r.State = StateFailed
	r.ErrorMessage = errorMessage
	r.UpdatedAt = now
	r.CompletedAt = &now
	return nil
}

// Complete marks a run finished without changing its state. Update runs that
// never reach the gateway step end this way.
func (r *Run) Complete() {
	now := time.Now()
	r.UpdatedAt = now
	r.CompletedAt = &now
}

// SetStep updates the current step description.
func (r *Run) SetStep(step string) {
	r.CurrentStep = step
	r.UpdatedAt = time.Now()
}

// IsCompleted reports whether the run has finished, successfully or not.
func (r *Run) IsCompleted() bool {
	return r.CompletedAt != nil
}
