// Package workflow implements the per-operation finite-state machines that
// drive stepwise data entry. Each workflow kind owns a typed step enum and a
// typed accumulator; nothing mutates the aggregate store before the terminal
// confirm step hands the accumulated fields to the ledger engine.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/identity"
	"github.com/avionyx/farmhand/internal/service/ledger"
	"github.com/avionyx/farmhand/internal/service/settings"
)

// Kind identifies a workflow operation type.
type Kind string

const (
	KindDailyLog        Kind = "daily_log"
	KindPurchase        Kind = "purchase"
	KindSale            Kind = "sale"
	KindAdjustment      Kind = "inventory_adjustment"
	KindVaccination     Kind = "vaccination"
	KindFlockOnboarding Kind = "flock_onboarding"
	KindFlockUpdate     Kind = "flock_update"
	KindContact         Kind = "contact"
)

// Step names one state of a workflow's machine.
type Step string

// Option is one selectable choice presented with a prompt.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Prompt is what the presentation adapter renders for the current step.
type Prompt struct {
	Text    string   `json:"text"`
	Options []Option `json:"options,omitempty"`
	Done    bool     `json:"done"`
}

// Input is the operator's response to a prompt: a selected option id or
// free text.
type Input struct {
	Option string `json:"option"`
	Text   string `json:"text"`
}

// Value returns the selected option if any, else the free text.
func (in Input) Value() string {
	if in.Option != "" {
		return in.Option
	}
	return in.Text
}

// Reserved option ids shared across workflows.
const (
	OptConfirm = "confirm"
	OptCancel  = "cancel"
	OptBack    = "back"
	OptSkip    = "skip"
	OptDone    = "done"
	OptAdd     = "add"
	OptGeneric = "generic"
	OptNew     = "new"
	OptNone    = "none"
)

// ErrNoSession indicates input arrived for an operator with no in-flight
// workflow.
var ErrNoSession = errors.New("no workflow in progress")

// ErrNotPermitted indicates the operator's role does not allow the workflow.
var ErrNotPermitted = errors.New("workflow not permitted for role")

// Env bundles the collaborators a workflow step may consult: the aggregate
// store for live-state branching and the ledger engine for the final commit.
type Env struct {
	Store    repository.Store
	Ledger   *ledger.Engine
	Settings *settings.Service
	Now      func() time.Time
}

// StorageContext exposes the env's store as the ledger engine's explicit
// backend parameter.
func (e Env) StorageContext() ledger.StorageContext {
	return ledger.StorageContext{Store: e.Store}
}

// Workflow is one operation type's state machine.
type Workflow interface {
	Kind() Kind
	// Start initializes the accumulator and renders the first prompt.
	Start(ctx context.Context, env Env, operatorID string) (state any, p Prompt, err error)
	// Advance consumes one input, merges it into the accumulator and
	// computes the next step. It must not mutate the aggregate store except
	// through the ledger engine at the confirm step.
	Advance(ctx context.Context, env Env, sess *Session, in Input) (Prompt, error)
}

// rolePolicy maps each workflow kind to the minimum roles allowed to start
// it.
var rolePolicy = map[Kind][]models.OperatorRole{
	KindDailyLog:        {models.RoleStaff, models.RoleManager, models.RoleAdmin},
	KindSale:            {models.RoleStaff, models.RoleManager, models.RoleAdmin},
	KindVaccination:     {models.RoleStaff, models.RoleManager, models.RoleAdmin},
	KindPurchase:        {models.RoleManager, models.RoleAdmin},
	KindAdjustment:      {models.RoleManager, models.RoleAdmin},
	KindFlockUpdate:     {models.RoleManager, models.RoleAdmin},
	KindContact:         {models.RoleManager, models.RoleAdmin},
	KindFlockOnboarding: {models.RoleAdmin},
}

func roleAllows(kind Kind, role models.OperatorRole) bool {
	for _, allowed := range rolePolicy[kind] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Engine routes operator inputs to the right workflow machine, one in-flight
// workflow per operator, steps strictly sequential per operator.
type Engine struct {
	env       Env
	sessions  *SessionManager
	roles     identity.Provider
	workflows map[Kind]Workflow
	logger    *zap.Logger
}

// NewEngine wires the workflow engine with every registered workflow kind.
func NewEngine(store repository.Store, ledgerEngine *ledger.Engine, roles identity.Provider, sessions *SessionManager, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	env := Env{
		Store:    store,
		Ledger:   ledgerEngine,
		Settings: settings.NewService(store),
		Now:      time.Now,
	}
	e := &Engine{
		env:       env,
		sessions:  sessions,
		roles:     roles,
		workflows: map[Kind]Workflow{},
		logger:    logger,
	}
	for _, wf := range []Workflow{
		&dailyLogWorkflow{},
		&purchaseWorkflow{},
		&saleWorkflow{},
		&adjustmentWorkflow{},
		&vaccinationWorkflow{},
		&flockOnboardingWorkflow{},
		&flockUpdateWorkflow{},
		&contactWorkflow{},
	} {
		e.workflows[wf.Kind()] = wf
	}
	return e
}

// WithClock overrides the env clock; used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.env.Now = now
	return e
}

// Start begins a workflow for the operator, replacing any in-flight session.
func (e *Engine) Start(ctx context.Context, operatorID string, kind Kind) (Prompt, error) {
	wf, ok := e.workflows[kind]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown workflow kind %q", kind)
	}

	role, err := e.roles.Role(ctx, operatorID)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to resolve operator role: %w", err)
	}
	if !roleAllows(kind, role) {
		return Prompt{}, fmt.Errorf("%w: %s may not start %s", ErrNotPermitted, role, kind)
	}

	state, prompt, err := wf.Start(ctx, e.env, operatorID)
	if err != nil {
		return Prompt{}, err
	}
	sess := e.sessions.Start(operatorID, kind)
	sess.State = state
	e.logger.Debug("workflow started",
		zap.String("operator", operatorID), zap.String("kind", string(kind)))
	return prompt, nil
}

// HandleInput feeds one operator response into the in-flight workflow.
// Cancel clears the session with zero store mutation; NotFound and
// persistence failures abort and clear the session; validation and
// feasibility errors are handled inside the workflow and re-render a prompt.
func (e *Engine) HandleInput(ctx context.Context, operatorID string, in Input) (Prompt, error) {
	sess, ok := e.sessions.Get(operatorID)
	if !ok {
		return Prompt{}, ErrNoSession
	}

	// Per-operator serialization: steps from the same operator never run
	// concurrently.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if in.Option == OptCancel {
		e.sessions.Clear(operatorID)
		return Prompt{Text: "Canceled. No changes were made.", Done: true}, nil
	}

	wf := e.workflows[sess.Kind]
	prompt, err := wf.Advance(ctx, e.env, sess, in)
	if err != nil {
		// Anything escaping the workflow is terminal for the session.
		e.sessions.Clear(operatorID)
		e.logger.Error("workflow aborted",
			zap.String("operator", operatorID),
			zap.String("kind", string(sess.Kind)),
			zap.String("step", string(sess.Step)),
			zap.Error(err))
		return Prompt{}, err
	}

	sess.Touch(e.env.Now())
	if prompt.Done {
		e.sessions.Clear(operatorID)
	}
	return prompt, nil
}

// Cancel discards the operator's in-flight workflow, if any.
func (e *Engine) Cancel(operatorID string) bool {
	_, ok := e.sessions.Get(operatorID)
	if ok {
		e.sessions.Clear(operatorID)
	}
	return ok
}

// confirmOptions is the shared terminal option set.
func confirmOptions() []Option {
	return []Option{
		{ID: OptConfirm, Label: "Confirm and save"},
		{ID: OptCancel, Label: "Cancel"},
	}
}

func backOption() Option {
	return Option{ID: OptBack, Label: "Back"}
}
