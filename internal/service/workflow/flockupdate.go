package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/ledger"
)

// FlockUpdate steps.
const (
	StepFlockSelect    Step = "flock_select"
	StepFlockAction    Step = "action"
	StepFlockCount     Step = "count"
	StepFlockHens      Step = "hens"
	StepFlockReason    Step = "reason"
	StepFlockPurchased Step = "purchased"
	StepFlockCost      Step = "cost"
	StepFlockPayment   Step = "payment"
	StepFlockReference Step = "reference"
	StepFlockSupplier  Step = "supplier"
	StepFlockConfirm   Step = "confirm"
)

type flockUpdateState struct {
	operatorID    string
	flockID       string
	flockName     string
	flockCount    int
	flockHens     int
	flockRoosters int
	action   ledger.FlockAction
	count    int
	hens     int
	roosters int
	reason   string
	purchased    bool
	cost         float64
	payment      models.PaymentMethod
	reference    string
	supplierID   string
	supplierName string
}

type flockUpdateWorkflow struct{}

func (w *flockUpdateWorkflow) Kind() Kind { return KindFlockUpdate }

func (w *flockUpdateWorkflow) Start(ctx context.Context, env Env, operatorID string) (any, Prompt, error) {
	state := &flockUpdateState{operatorID: operatorID}
	prompt, err := w.flockSelectPrompt(ctx, env, nil)
	if err != nil {
		return nil, Prompt{}, err
	}
	return state, prompt, nil
}

func (w *flockUpdateWorkflow) Advance(ctx context.Context, env Env, sess *Session, in Input) (Prompt, error) {
	state := sess.State.(*flockUpdateState)
	if sess.Step == "" {
		sess.Step = StepFlockSelect
	}

	switch sess.Step {
	case StepFlockSelect:
		flock, err := env.Store.FlockByID(ctx, in.Value())
		if err != nil {
			if err == repository.ErrNotFound {
				prompt, perr := w.flockSelectPrompt(ctx, env, sess)
				if perr != nil {
					return Prompt{}, perr
				}
				return withWarning(prompt, "Select a flock from the list."), nil
			}
			return Prompt{}, err
		}
		state.flockID = flock.ID
		state.flockName = flock.Name
		state.flockCount = flock.CurrentCount
		state.flockHens = flock.HensCount
		state.flockRoosters = flock.RoostersCount
		sess.Step = StepFlockAction
		return w.actionPrompt(state), nil

	case StepFlockAction:
		if in.Option == OptBack {
			return w.flockSelectPrompt(ctx, env, sess)
		}
		switch in.Option {
		case "add":
			state.action = ledger.FlockAdd
		case "remove":
			state.action = ledger.FlockRemove
		case "mortality":
			state.action = ledger.FlockMortality
		default:
			return withWarning(w.actionPrompt(state), "Select an action."), nil
		}
		sess.Step = StepFlockCount
		return w.countPrompt(state), nil

	case StepFlockCount:
		if in.Option == OptBack {
			sess.Step = StepFlockAction
			return w.actionPrompt(state), nil
		}
		count, ok := parsePositiveInt(in.Value())
		if !ok {
			return withWarning(w.countPrompt(state), "Please enter a positive whole number."), nil
		}
		if state.action != ledger.FlockAdd && count > state.flockCount {
			return withWarning(w.countPrompt(state),
				fmt.Sprintf("%s only has %d birds.", state.flockName, state.flockCount)), nil
		}
		state.count = count
		sess.Step = StepFlockHens
		return w.hensPrompt(state), nil

	case StepFlockHens:
		if in.Option == OptBack {
			sess.Step = StepFlockCount
			return w.countPrompt(state), nil
		}
		hens, ok := parseNonNegativeInt(in.Value())
		if !ok || hens > state.count {
			return withWarning(w.hensPrompt(state),
				fmt.Sprintf("Enter a number between 0 and %d.", state.count)), nil
		}
		roosters := state.count - hens
		if state.action != ledger.FlockAdd {
			if hens > state.flockHens {
				return withWarning(w.hensPrompt(state),
					fmt.Sprintf("%s only has %d hens.", state.flockName, state.flockHens)), nil
			}
			if roosters > state.flockRoosters {
				return withWarning(w.hensPrompt(state), fmt.Sprintf(
					"That split needs %d roosters but %s only has %d.",
					roosters, state.flockName, state.flockRoosters)), nil
			}
		}
		state.hens = hens
		state.roosters = roosters
		switch state.action {
		case ledger.FlockMortality:
			sess.Step = StepFlockReason
			return w.reasonPrompt(), nil
		case ledger.FlockAdd:
			sess.Step = StepFlockPurchased
			return w.purchasedPrompt(), nil
		}
		sess.Step = StepFlockConfirm
		return w.summaryPrompt(state), nil

	case StepFlockReason:
		if in.Option == OptBack {
			sess.Step = StepFlockHens
			return w.hensPrompt(state), nil
		}
		if in.Value() == "" {
			return withWarning(w.reasonPrompt(), "Select a reason."), nil
		}
		state.reason = in.Value()
		sess.Step = StepFlockConfirm
		return w.summaryPrompt(state), nil

	case StepFlockPurchased:
		switch in.Option {
		case OptBack:
			sess.Step = StepFlockHens
			return w.hensPrompt(state), nil
		case "purchased":
			state.purchased = true
			sess.Step = StepFlockCost
			return w.costPrompt(), nil
		case "hatched":
			state.purchased = false
			sess.Step = StepFlockConfirm
			return w.summaryPrompt(state), nil
		}
		return withWarning(w.purchasedPrompt(), "Select an option."), nil

	case StepFlockCost:
		if in.Option == OptBack {
			sess.Step = StepFlockPurchased
			return w.purchasedPrompt(), nil
		}
		cost, ok := parsePositiveFloat(in.Value())
		if !ok {
			return withWarning(w.costPrompt(), "Please enter the total cost."), nil
		}
		state.cost = cost
		sess.Step = StepFlockPayment
		return w.paymentPrompt(), nil

	case StepFlockPayment:
		if in.Option == OptBack {
			sess.Step = StepFlockCost
			return w.costPrompt(), nil
		}
		method, ok := parsePaymentMethod(in.Option)
		if !ok {
			return withWarning(w.paymentPrompt(), "Select a payment method."), nil
		}
		state.payment = method
		if method.Electronic() {
			sess.Step = StepFlockReference
			return w.referencePrompt(), nil
		}
		return w.supplierPrompt(ctx, env, sess)

	case StepFlockReference:
		if in.Option == OptBack {
			sess.Step = StepFlockPayment
			return w.paymentPrompt(), nil
		}
		if in.Option != OptSkip {
			state.reference = strings.TrimSpace(in.Text)
		}
		return w.supplierPrompt(ctx, env, sess)

	case StepFlockSupplier:
		switch in.Option {
		case OptBack:
			sess.Step = StepFlockPayment
			return w.paymentPrompt(), nil
		case OptGeneric:
			state.supplierID = ""
			state.supplierName = "generic supplier"
		default:
			contact, err := env.Store.ContactByID(ctx, in.Value())
			if err != nil {
				if err == repository.ErrNotFound {
					prompt, perr := w.supplierPrompt(ctx, env, sess)
					if perr != nil {
						return Prompt{}, perr
					}
					return withWarning(prompt, "Select a supplier from the list."), nil
				}
				return Prompt{}, err
			}
			state.supplierID = contact.ID
			state.supplierName = contact.Name
		}
		sess.Step = StepFlockConfirm
		return w.summaryPrompt(state), nil

	case StepFlockConfirm:
		if in.Option != OptConfirm {
			return withWarning(w.summaryPrompt(state), "Select an option."), nil
		}
		result, err := env.Ledger.CommitFlockChange(ctx, env.StorageContext(), ledger.FlockChangeFields{
			OperatorID: state.operatorID,
			FlockID:    state.flockID,
			Action:     state.action,
			Count:      state.count,
			Hens:       state.hens,
			Roosters:   state.roosters,
			Reason:     state.reason,
			Purchased:  state.purchased,
			Cost:       state.cost,
			SupplierID: state.supplierID,
			Payment:    state.payment,
			Reference:  state.reference,
		})
		if err != nil {
			if fe, ok := ledger.AsFeasibility(err); ok {
				state.flockCount = int(fe.Current)
				sess.Step = StepFlockCount
				return withWarning(w.countPrompt(state), fmt.Sprintf(
					"The flock changed: have %.0f, requested %.0f. Enter a lower count.",
					fe.Current, fe.Requested)), nil
			}
			return Prompt{}, err
		}
		return Prompt{
			Text: fmt.Sprintf("Flock change saved. %s now has %d birds; farm total is %d.",
				result.FlockName, result.CurrentCount, result.FlockTotal),
			Done: true,
		}, nil
	}
	return Prompt{}, fmt.Errorf("flock update: unknown step %q", sess.Step)
}

func (w *flockUpdateWorkflow) flockSelectPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
	flocks, err := env.Store.ListFlocks(ctx, true)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to list flocks: %w", err)
	}
	if len(flocks) == 0 {
		return Prompt{}, fmt.Errorf("no active flocks: %w", repository.ErrNotFound)
	}
	options := make([]Option, 0, len(flocks)+1)
	for _, flock := range flocks {
		options = append(options, Option{
			ID:    flock.ID,
			Label: fmt.Sprintf("%s (%d birds)", flock.Name, flock.CurrentCount),
		})
	}
	options = append(options, Option{ID: OptCancel, Label: "Cancel"})
	if sess != nil {
		sess.Step = StepFlockSelect
	}
	return Prompt{
		Text:    "Which flock changed?",
		Options: options,
	}, nil
}

func (w *flockUpdateWorkflow) actionPrompt(state *flockUpdateState) Prompt {
	return Prompt{
		Text: fmt.Sprintf("What happened to %s? (%d birds: %d hens, %d roosters)",
			state.flockName, state.flockCount, state.flockHens, state.flockRoosters),
		Options: []Option{
			{ID: "add", Label: "Birds added"},
			{ID: "remove", Label: "Birds removed"},
			{ID: "mortality", Label: "Deaths"},
			backOption(),
		},
	}
}

func (w *flockUpdateWorkflow) countPrompt(state *flockUpdateState) Prompt {
	verb := "added"
	switch state.action {
	case ledger.FlockRemove:
		verb = "removed"
	case ledger.FlockMortality:
		verb = "lost"
	}
	return Prompt{
		Text:    fmt.Sprintf("How many birds were %s?", verb),
		Options: []Option{backOption()},
	}
}

func (w *flockUpdateWorkflow) hensPrompt(state *flockUpdateState) Prompt {
	return Prompt{
		Text:    fmt.Sprintf("Of the %d birds, how many were hens? (the rest count as roosters)", state.count),
		Options: []Option{backOption()},
	}
}

func (w *flockUpdateWorkflow) reasonPrompt() Prompt {
	return Prompt{
		Text: "What was the cause?",
		Options: []Option{
			{ID: "sickness", Label: "Sickness"},
			{ID: "predator", Label: "Predator"},
			{ID: "unknown", Label: "Unknown"},
			{ID: "other", Label: "Other"},
			backOption(),
		},
	}
}

func (w *flockUpdateWorkflow) purchasedPrompt() Prompt {
	return Prompt{
		Text: "Were the new birds purchased?",
		Options: []Option{
			{ID: "purchased", Label: "Purchased"},
			{ID: "hatched", Label: "Hatched here"},
			backOption(),
		},
	}
}

func (w *flockUpdateWorkflow) costPrompt() Prompt {
	return Prompt{
		Text:    "Total cost for the new birds?",
		Options: []Option{backOption()},
	}
}

func (w *flockUpdateWorkflow) paymentPrompt() Prompt {
	return Prompt{
		Text:    "How was it paid?",
		Options: append(paymentOptions(), backOption()),
	}
}

func (w *flockUpdateWorkflow) referencePrompt() Prompt {
	return Prompt{
		Text: "Transaction reference?",
		Options: []Option{
			{ID: OptSkip, Label: "No reference"},
			backOption(),
		},
	}
}

func (w *flockUpdateWorkflow) supplierPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
	contacts, err := env.Store.ListContacts(ctx, models.RoleSupplier)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to list suppliers: %w", err)
	}
	options := make([]Option, 0, len(contacts)+2)
	for _, contact := range contacts {
		options = append(options, Option{ID: contact.ID, Label: contact.Name})
	}
	options = append(options,
		Option{ID: OptGeneric, Label: "No specific supplier"},
		backOption(),
	)
	sess.Step = StepFlockSupplier
	return Prompt{
		Text:    "Who supplied the birds?",
		Options: options,
	}, nil
}

func (w *flockUpdateWorkflow) summaryPrompt(state *flockUpdateState) Prompt {
	var change string
	switch state.action {
	case ledger.FlockAdd:
		change = fmt.Sprintf("Add %d birds (%d hens, %d roosters)", state.count, state.hens, state.roosters)
		if state.purchased {
			change += fmt.Sprintf(", purchased for %.2f (%s)", state.cost, state.payment)
		}
	case ledger.FlockRemove:
		change = fmt.Sprintf("Remove %d birds (%d hens, %d roosters)", state.count, state.hens, state.roosters)
	case ledger.FlockMortality:
		change = fmt.Sprintf("%d deaths (%d hens, %d roosters), cause: %s", state.count, state.hens, state.roosters, state.reason)
	}
	return Prompt{
		Text: fmt.Sprintf("Flock change summary\nFlock: %s\nChange: %s\n\nSave this change?",
			state.flockName, change),
		Options: confirmOptions(),
	}
}
