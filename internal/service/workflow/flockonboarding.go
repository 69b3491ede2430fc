package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/ledger"
)

// FlockOnboarding steps.
const (
	StepOnboardName      Step = "name"
	StepOnboardBreed     Step = "breed"
	StepOnboardHatchDate Step = "hatch_date"
	StepOnboardCount     Step = "count"
	StepOnboardHens      Step = "hens"
	StepOnboardPurchased Step = "purchased"
	StepOnboardCost      Step = "cost"
	StepOnboardPayment   Step = "payment"
	StepOnboardReference Step = "reference"
	StepOnboardSupplier  Step = "supplier"
	StepOnboardConfirm   Step = "confirm"
)

type flockOnboardingState struct {
	operatorID   string
	name         string
	breed        string
	hatchDate    time.Time
	count        int
	hens         int
	roosters     int
	purchased    bool
	cost         float64
	payment      models.PaymentMethod
	reference    string
	supplierID   string
	supplierName string
}

type flockOnboardingWorkflow struct{}

func (w *flockOnboardingWorkflow) Kind() Kind { return KindFlockOnboarding }

func (w *flockOnboardingWorkflow) Start(_ context.Context, _ Env, operatorID string) (any, Prompt, error) {
	return &flockOnboardingState{operatorID: operatorID}, w.namePrompt(), nil
}

func (w *flockOnboardingWorkflow) Advance(ctx context.Context, env Env, sess *Session, in Input) (Prompt, error) {
	state := sess.State.(*flockOnboardingState)
	if sess.Step == "" {
		sess.Step = StepOnboardName
	}

	switch sess.Step {
	case StepOnboardName:
		name := strings.TrimSpace(in.Text)
		if name == "" {
			return withWarning(w.namePrompt(), "Enter a name for the flock."), nil
		}
		if _, err := env.Store.FlockByName(ctx, name); err == nil {
			return withWarning(w.namePrompt(),
				fmt.Sprintf("A flock named %q already exists. Choose another name.", name)), nil
		} else if err != repository.ErrNotFound {
			return Prompt{}, err
		}
		state.name = name
		sess.Step = StepOnboardBreed
		return w.breedPrompt(), nil

	case StepOnboardBreed:
		if in.Option == OptBack {
			sess.Step = StepOnboardName
			return w.namePrompt(), nil
		}
		breed := strings.TrimSpace(in.Value())
		if breed == "" {
			return withWarning(w.breedPrompt(), "Enter or select a breed."), nil
		}
		state.breed = breed
		sess.Step = StepOnboardHatchDate
		return w.hatchDatePrompt(), nil

	case StepOnboardHatchDate:
		if in.Option == OptBack {
			sess.Step = StepOnboardBreed
			return w.breedPrompt(), nil
		}
		if in.Option == "today" {
			state.hatchDate = env.Now()
		} else {
			date, ok := parseDate(in.Value())
			if !ok {
				return withWarning(w.hatchDatePrompt(), "Enter the hatch date as YYYY-MM-DD."), nil
			}
			if date.After(env.Now()) {
				return withWarning(w.hatchDatePrompt(), "The hatch date cannot be in the future."), nil
			}
			state.hatchDate = date
		}
		sess.Step = StepOnboardCount
		return w.countPrompt(), nil

	case StepOnboardCount:
		if in.Option == OptBack {
			sess.Step = StepOnboardHatchDate
			return w.hatchDatePrompt(), nil
		}
		count, ok := parsePositiveInt(in.Value())
		if !ok {
			return withWarning(w.countPrompt(), "Please enter a positive whole number."), nil
		}
		state.count = count
		sess.Step = StepOnboardHens
		return w.hensPrompt(state), nil

	case StepOnboardHens:
		if in.Option == OptBack {
			sess.Step = StepOnboardCount
			return w.countPrompt(), nil
		}
		hens, ok := parseNonNegativeInt(in.Value())
		if !ok || hens > state.count {
			return withWarning(w.hensPrompt(state),
				fmt.Sprintf("Enter a number between 0 and %d.", state.count)), nil
		}
		state.hens = hens
		state.roosters = state.count - hens
		sess.Step = StepOnboardPurchased
		return w.purchasedPrompt(), nil

	case StepOnboardPurchased:
		switch in.Option {
		case OptBack:
			sess.Step = StepOnboardHens
			return w.hensPrompt(state), nil
		case "purchased":
			state.purchased = true
			sess.Step = StepOnboardCost
			return w.costPrompt(), nil
		case "hatched":
			state.purchased = false
			sess.Step = StepOnboardConfirm
			return w.summaryPrompt(state), nil
		}
		return withWarning(w.purchasedPrompt(), "Select an option."), nil

	case StepOnboardCost:
		if in.Option == OptBack {
			sess.Step = StepOnboardPurchased
			return w.purchasedPrompt(), nil
		}
		cost, ok := parsePositiveFloat(in.Value())
		if !ok {
			return withWarning(w.costPrompt(), "Please enter the total purchase cost."), nil
		}
		state.cost = cost
		sess.Step = StepOnboardPayment
		return w.paymentPrompt(), nil

	case StepOnboardPayment:
		if in.Option == OptBack {
			sess.Step = StepOnboardCost
			return w.costPrompt(), nil
		}
		method, ok := parsePaymentMethod(in.Option)
		if !ok {
			return withWarning(w.paymentPrompt(), "Select a payment method."), nil
		}
		state.payment = method
		if method.Electronic() {
			sess.Step = StepOnboardReference
			return w.referencePrompt(), nil
		}
		return w.supplierPrompt(ctx, env, sess)

	case StepOnboardReference:
		if in.Option == OptBack {
			sess.Step = StepOnboardPayment
			return w.paymentPrompt(), nil
		}
		if in.Option != OptSkip {
			state.reference = strings.TrimSpace(in.Text)
		}
		return w.supplierPrompt(ctx, env, sess)

	case StepOnboardSupplier:
		switch in.Option {
		case OptBack:
			sess.Step = StepOnboardPayment
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
		sess.Step = StepOnboardConfirm
		return w.summaryPrompt(state), nil

	case StepOnboardConfirm:
		if in.Option != OptConfirm {
			return withWarning(w.summaryPrompt(state), "Select an option."), nil
		}
		result, err := env.Ledger.CommitFlockOnboarding(ctx, env.StorageContext(), ledger.FlockOnboardingFields{
			OperatorID:    state.operatorID,
			Name:          state.name,
			Breed:         state.breed,
			HatchDate:     state.hatchDate,
			InitialCount:  state.count,
			HensCount:     state.hens,
			RoostersCount: state.roosters,
			Purchased:     state.purchased,
			Cost:          state.cost,
			SupplierID:    state.supplierID,
			Payment:       state.payment,
			Reference:     state.reference,
		})
		if err != nil {
			if _, ok := ledger.AsFeasibility(err); ok {
				sess.Step = StepOnboardName
				return withWarning(w.namePrompt(), "That flock name was just taken. Choose another name."), nil
			}
			return Prompt{}, err
		}
		return Prompt{
			Text: fmt.Sprintf("Flock %s registered with %d birds. Farm total is now %d.",
				state.name, state.count, result.FlockTotal),
			Done: true,
		}, nil
	}
	return Prompt{}, fmt.Errorf("flock onboarding: unknown step %q", sess.Step)
}

func (w *flockOnboardingWorkflow) namePrompt() Prompt {
	return Prompt{
		Text:    "Registering a new flock. What should it be called?",
		Options: []Option{{ID: OptCancel, Label: "Cancel"}},
	}
}

func (w *flockOnboardingWorkflow) breedPrompt() Prompt {
	return Prompt{
		Text: "What breed?",
		Options: []Option{
			{ID: "Layers", Label: "Layers"},
			{ID: "Broilers", Label: "Broilers"},
			{ID: "Kienyeji", Label: "Kienyeji"},
			backOption(),
		},
	}
}

func (w *flockOnboardingWorkflow) hatchDatePrompt() Prompt {
	return Prompt{
		Text: "When did the flock hatch? (YYYY-MM-DD)",
		Options: []Option{
			{ID: "today", Label: "Today (day-old chicks)"},
			backOption(),
		},
	}
}

func (w *flockOnboardingWorkflow) countPrompt() Prompt {
	return Prompt{
		Text:    "How many birds in the flock?",
		Options: []Option{backOption()},
	}
}

func (w *flockOnboardingWorkflow) hensPrompt(state *flockOnboardingState) Prompt {
	return Prompt{
		Text:    fmt.Sprintf("Of the %d birds, how many are hens? (the rest count as roosters)", state.count),
		Options: []Option{backOption()},
	}
}

func (w *flockOnboardingWorkflow) purchasedPrompt() Prompt {
	return Prompt{
		Text: "Were the birds purchased or hatched on the farm?",
		Options: []Option{
			{ID: "purchased", Label: "Purchased"},
			{ID: "hatched", Label: "Hatched here"},
			backOption(),
		},
	}
}

func (w *flockOnboardingWorkflow) costPrompt() Prompt {
	return Prompt{
		Text:    "Total purchase cost for the flock?",
		Options: []Option{backOption()},
	}
}

func (w *flockOnboardingWorkflow) paymentPrompt() Prompt {
	return Prompt{
		Text:    "How was it paid?",
		Options: append(paymentOptions(), backOption()),
	}
}

func (w *flockOnboardingWorkflow) referencePrompt() Prompt {
	return Prompt{
		Text: "Transaction reference?",
		Options: []Option{
			{ID: OptSkip, Label: "No reference"},
			backOption(),
		},
	}
}

func (w *flockOnboardingWorkflow) supplierPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
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
	sess.Step = StepOnboardSupplier
	return Prompt{
		Text:    "Who supplied the birds?",
		Options: options,
	}, nil
}

func (w *flockOnboardingWorkflow) summaryPrompt(state *flockOnboardingState) Prompt {
	origin := "hatched on farm"
	if state.purchased {
		origin = fmt.Sprintf("purchased for %.2f (%s)", state.cost, state.payment)
		if state.supplierName != "" {
			origin += " from " + state.supplierName
		}
	}
	return Prompt{
		Text: fmt.Sprintf("New flock summary\nName: %s\nBreed: %s\nHatched: %s\nBirds: %d (%d hens, %d roosters)\nOrigin: %s\n\nRegister this flock?",
			state.name, state.breed, state.hatchDate.Format(models.DateLayout),
			state.count, state.hens, state.roosters, origin),
		Options: confirmOptions(),
	}
}
