package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/ledger"
	"github.com/avionyx/farmhand/internal/service/settings"
)

// Sale steps.
const (
	StepSaleProduct      Step = "product"
	StepSaleEggMode      Step = "egg_mode"
	StepSaleQuantity     Step = "quantity"
	StepSaleFlockSelect  Step = "flock_select"
	StepSaleHens         Step = "hens"
	StepSaleRoosters     Step = "roosters"
	StepSalePricePerBird Step = "price_per_bird"
	StepSalePayment      Step = "payment"
	StepSaleReference    Step = "reference"
	StepSaleCustomer     Step = "customer"
	StepSaleConfirm      Step = "confirm"
)

type saleState struct {
	operatorID string
	product    ledger.SaleProduct

	mode     ledger.EggSaleMode
	quantity int
	eggStock float64

	flockID       string
	flockName     string
	flockCount    int
	flockHens     int
	flockRoosters int
	hensSold      int
	roostersSold  int
	pricePerBird  float64

	payment      models.PaymentMethod
	reference    string
	customerID   string
	customerName string
}

type saleWorkflow struct{}

func (w *saleWorkflow) Kind() Kind { return KindSale }

func (w *saleWorkflow) Start(_ context.Context, _ Env, operatorID string) (any, Prompt, error) {
	return &saleState{operatorID: operatorID}, w.productPrompt(), nil
}

func (w *saleWorkflow) Advance(ctx context.Context, env Env, sess *Session, in Input) (Prompt, error) {
	state := sess.State.(*saleState)
	if sess.Step == "" {
		sess.Step = StepSaleProduct
	}

	switch sess.Step {
	case StepSaleProduct:
		switch in.Option {
		case "eggs":
			state.product = ledger.SaleEggs
			sess.Step = StepSaleEggMode
			return w.eggModePrompt(ctx, env), nil
		case "birds":
			state.product = ledger.SaleBirds
			return w.flockSelectPrompt(ctx, env, sess)
		}
		return withWarning(w.productPrompt(), "Select what you sold."), nil

	case StepSaleEggMode:
		if in.Option == OptBack {
			sess.Step = StepSaleProduct
			return w.productPrompt(), nil
		}
		switch in.Option {
		case "egg":
			state.mode = ledger.ModeEgg
		case "crate":
			state.mode = ledger.ModeCrate
		default:
			return withWarning(w.eggModePrompt(ctx, env), "Select eggs or crates."), nil
		}
		return w.eggQuantityPrompt(ctx, env, sess, state, "")

	case StepSaleQuantity:
		if state.product == ledger.SaleBirds {
			return w.advanceBirdQuantity(ctx, env, sess, state, in)
		}
		if in.Option == OptBack {
			sess.Step = StepSaleEggMode
			return w.eggModePrompt(ctx, env), nil
		}
		qty, ok := parsePositiveInt(in.Value())
		if !ok {
			return w.eggQuantityPrompt(ctx, env, sess, state, "Please enter a positive whole number.")
		}
		eggsNeeded := qty
		if state.mode == ledger.ModeCrate {
			eggsNeeded = qty * env.Settings.Int(ctx, settings.KeyEggsPerCrate, settings.DefaultEggsPerCrate)
		}
		if float64(eggsNeeded) > state.eggStock {
			return w.eggQuantityPrompt(ctx, env, sess, state, fmt.Sprintf(
				"Not enough eggs in stock: have %.0f, this sale needs %d. Enter a lower quantity.",
				state.eggStock, eggsNeeded))
		}
		state.quantity = qty
		sess.Step = StepSalePayment
		return w.paymentPrompt(), nil

	case StepSaleFlockSelect:
		if in.Option == OptBack {
			sess.Step = StepSaleProduct
			return w.productPrompt(), nil
		}
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
		sess.Step = StepSaleQuantity
		return w.birdQuantityPrompt(state), nil

	case StepSaleHens:
		if in.Option == OptBack {
			sess.Step = StepSaleQuantity
			return w.birdQuantityPrompt(state), nil
		}
		hens, ok := parseNonNegativeInt(in.Value())
		if !ok || hens > state.quantity {
			return withWarning(w.hensPrompt(state),
				fmt.Sprintf("Enter a number between 0 and %d.", state.quantity)), nil
		}
		if hens > state.flockHens {
			return withWarning(w.hensPrompt(state),
				fmt.Sprintf("%s only has %d hens.", state.flockName, state.flockHens)), nil
		}
		state.hensSold = hens
		state.roostersSold = state.quantity - hens
		if state.roostersSold > state.flockRoosters {
			return withWarning(w.hensPrompt(state), fmt.Sprintf(
				"That split needs %d roosters but %s only has %d.",
				state.roostersSold, state.flockName, state.flockRoosters)), nil
		}
		sess.Step = StepSalePricePerBird
		return w.pricePerBirdPrompt(), nil

	case StepSalePricePerBird:
		if in.Option == OptBack {
			sess.Step = StepSaleHens
			return w.hensPrompt(state), nil
		}
		price, ok := parsePositiveFloat(in.Value())
		if !ok {
			return withWarning(w.pricePerBirdPrompt(), "Please enter a positive price."), nil
		}
		state.pricePerBird = price
		sess.Step = StepSalePayment
		return w.paymentPrompt(), nil

	case StepSalePayment:
		if in.Option == OptBack {
			if state.product == ledger.SaleBirds {
				sess.Step = StepSalePricePerBird
				return w.pricePerBirdPrompt(), nil
			}
			return w.eggQuantityPrompt(ctx, env, sess, state, "")
		}
		method, ok := parsePaymentMethod(in.Option)
		if !ok {
			return withWarning(w.paymentPrompt(), "Select a payment method."), nil
		}
		state.payment = method
		if method.Electronic() {
			sess.Step = StepSaleReference
			return w.referencePrompt(), nil
		}
		return w.customerPrompt(ctx, env, sess)

	case StepSaleReference:
		if in.Option == OptBack {
			sess.Step = StepSalePayment
			return w.paymentPrompt(), nil
		}
		if in.Option != OptSkip {
			state.reference = strings.TrimSpace(in.Text)
		}
		return w.customerPrompt(ctx, env, sess)

	case StepSaleCustomer:
		switch in.Option {
		case OptBack:
			sess.Step = StepSalePayment
			return w.paymentPrompt(), nil
		case OptGeneric:
			state.customerID = ""
			state.customerName = "walk-in customer"
		default:
			contact, err := env.Store.ContactByID(ctx, in.Value())
			if err != nil {
				if err == repository.ErrNotFound {
					prompt, perr := w.customerPrompt(ctx, env, sess)
					if perr != nil {
						return Prompt{}, perr
					}
					return withWarning(prompt, "Select a customer from the list."), nil
				}
				return Prompt{}, err
			}
			state.customerID = contact.ID
			state.customerName = contact.Name
		}
		return w.summaryPrompt(ctx, env, sess, state), nil

	case StepSaleConfirm:
		if in.Option != OptConfirm {
			return withWarning(w.summaryPrompt(ctx, env, sess, state), "Select an option."), nil
		}
		return w.commit(ctx, env, sess, state)
	}
	return Prompt{}, fmt.Errorf("sale: unknown step %q", sess.Step)
}

func (w *saleWorkflow) advanceBirdQuantity(ctx context.Context, env Env, sess *Session, state *saleState, in Input) (Prompt, error) {
	if in.Option == OptBack {
		return w.flockSelectPrompt(ctx, env, sess)
	}
	qty, ok := parsePositiveInt(in.Value())
	if !ok {
		return withWarning(w.birdQuantityPrompt(state), "Please enter a positive whole number."), nil
	}
	if qty > state.flockCount {
		return withWarning(w.birdQuantityPrompt(state),
			fmt.Sprintf("%s only has %d birds.", state.flockName, state.flockCount)), nil
	}
	state.quantity = qty
	sess.Step = StepSaleHens
	return w.hensPrompt(state), nil
}

func (w *saleWorkflow) commit(ctx context.Context, env Env, sess *Session, state *saleState) (Prompt, error) {
	fields := ledger.SaleFields{
		OperatorID:   state.operatorID,
		Product:      state.product,
		Mode:         state.mode,
		Quantity:     state.quantity,
		FlockID:      state.flockID,
		HensSold:     state.hensSold,
		RoostersSold: state.roostersSold,
		PricePerBird: state.pricePerBird,
		Payment:      state.payment,
		Reference:    state.reference,
		CustomerID:   state.customerID,
	}

	result, err := env.Ledger.CommitSale(ctx, env.StorageContext(), fields)
	if err != nil {
		if fe, ok := ledger.AsFeasibility(err); ok {
			// Stock or flock shrank between the step check and the commit.
			return w.reopenQuantity(ctx, env, sess, state, fe)
		}
		return Prompt{}, err
	}

	if state.product == ledger.SaleBirds {
		return Prompt{
			Text: fmt.Sprintf("Sale saved.\nSold %d birds from %s for %.2f.\n%s now has %d birds.",
				state.quantity, state.flockName, result.Revenue, state.flockName, result.FlockAfter),
			Done: true,
		}, nil
	}
	return Prompt{
		Text: fmt.Sprintf("Sale saved.\nRevenue: %.2f\nEggs deducted from stock: %d.",
			result.Revenue, result.EggsDeducted),
		Done: true,
	}, nil
}

func (w *saleWorkflow) reopenQuantity(ctx context.Context, env Env, sess *Session, state *saleState, fe *ledger.FeasibilityError) (Prompt, error) {
	warning := fmt.Sprintf("No longer feasible: have %.0f, requested %.0f. Enter a lower quantity.",
		fe.Current, fe.Requested)
	if state.product == ledger.SaleBirds {
		state.flockCount = int(fe.Current)
		sess.Step = StepSaleQuantity
		return withWarning(w.birdQuantityPrompt(state), warning), nil
	}
	state.eggStock = fe.Current
	sess.Step = StepSaleQuantity
	return withWarning(Prompt{
		Text:    w.eggQuantityText(ctx, env, state),
		Options: []Option{backOption()},
	}, warning), nil
}

func (w *saleWorkflow) productPrompt() Prompt {
	return Prompt{
		Text: "What did you sell?",
		Options: []Option{
			{ID: "eggs", Label: "Eggs"},
			{ID: "birds", Label: "Birds"},
			{ID: OptCancel, Label: "Cancel"},
		},
	}
}

func (w *saleWorkflow) eggModePrompt(ctx context.Context, env Env) Prompt {
	perEgg := env.Settings.Float(ctx, settings.KeyPricePerEgg, settings.DefaultPricePerEgg)
	perCrate := env.Settings.Float(ctx, settings.KeyPricePerCrate, settings.DefaultPricePerCrate)
	return Prompt{
		Text: "Sold by the egg or by the crate?",
		Options: []Option{
			{ID: "egg", Label: fmt.Sprintf("Single eggs (%.2f each)", perEgg)},
			{ID: "crate", Label: fmt.Sprintf("Crates (%.2f per crate)", perCrate)},
			backOption(),
		},
	}
}

func (w *saleWorkflow) eggQuantityPrompt(ctx context.Context, env Env, sess *Session, state *saleState, warning string) (Prompt, error) {
	item, err := env.Store.InventoryItemByName(ctx, ledger.EggItemName)
	switch {
	case err == nil:
		state.eggStock = item.Quantity
	case err == repository.ErrNotFound:
		state.eggStock = 0
	default:
		return Prompt{}, err
	}
	sess.Step = StepSaleQuantity
	prompt := Prompt{
		Text:    w.eggQuantityText(ctx, env, state),
		Options: []Option{backOption()},
	}
	if warning != "" {
		prompt = withWarning(prompt, warning)
	}
	return prompt, nil
}

func (w *saleWorkflow) eggQuantityText(ctx context.Context, env Env, state *saleState) string {
	if state.mode == ledger.ModeCrate {
		eggsPerCrate := env.Settings.Int(ctx, settings.KeyEggsPerCrate, settings.DefaultEggsPerCrate)
		crates := int(state.eggStock) / eggsPerCrate
		return fmt.Sprintf("How many crates? (stock: %.0f eggs, ~%d crates)", state.eggStock, crates)
	}
	return fmt.Sprintf("How many eggs? (stock: %.0f)", state.eggStock)
}

func (w *saleWorkflow) flockSelectPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
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
	options = append(options, backOption())
	sess.Step = StepSaleFlockSelect
	return Prompt{
		Text:    "Which flock were the birds sold from?",
		Options: options,
	}, nil
}

func (w *saleWorkflow) birdQuantityPrompt(state *saleState) Prompt {
	return Prompt{
		Text:    fmt.Sprintf("How many birds were sold from %s? (%d available)", state.flockName, state.flockCount),
		Options: []Option{backOption()},
	}
}

func (w *saleWorkflow) hensPrompt(state *saleState) Prompt {
	return Prompt{
		Text: fmt.Sprintf("Of the %d birds, how many were hens? (%s has %d hens, %d roosters)",
			state.quantity, state.flockName, state.flockHens, state.flockRoosters),
		Options: []Option{backOption()},
	}
}

func (w *saleWorkflow) pricePerBirdPrompt() Prompt {
	return Prompt{
		Text:    "Price per bird?",
		Options: []Option{backOption()},
	}
}

func (w *saleWorkflow) paymentPrompt() Prompt {
	return Prompt{
		Text:    "How did the buyer pay?",
		Options: append(paymentOptions(), backOption()),
	}
}

func (w *saleWorkflow) referencePrompt() Prompt {
	return Prompt{
		Text: "Transaction reference?",
		Options: []Option{
			{ID: OptSkip, Label: "No reference"},
			backOption(),
		},
	}
}

func (w *saleWorkflow) customerPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
	contacts, err := env.Store.ListContacts(ctx, models.RoleCustomer)
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to list customers: %w", err)
	}
	options := make([]Option, 0, len(contacts)+2)
	for _, contact := range contacts {
		options = append(options, Option{ID: contact.ID, Label: contact.Name})
	}
	options = append(options,
		Option{ID: OptGeneric, Label: "Walk-in customer"},
		backOption(),
	)
	sess.Step = StepSaleCustomer
	return Prompt{
		Text:    "Who bought?",
		Options: options,
	}, nil
}

func (w *saleWorkflow) summaryPrompt(ctx context.Context, env Env, sess *Session, state *saleState) Prompt {
	sess.Step = StepSaleConfirm

	var what string
	var revenue float64
	if state.product == ledger.SaleBirds {
		what = fmt.Sprintf("%d birds (%d hens, %d roosters) from %s @ %.2f",
			state.quantity, state.hensSold, state.roostersSold, state.flockName, state.pricePerBird)
		revenue = float64(state.quantity) * state.pricePerBird
	} else if state.mode == ledger.ModeCrate {
		what = fmt.Sprintf("%d crates of eggs", state.quantity)
		revenue = float64(state.quantity) * env.Settings.Float(ctx, settings.KeyPricePerCrate, settings.DefaultPricePerCrate)
	} else {
		what = fmt.Sprintf("%d eggs", state.quantity)
		revenue = float64(state.quantity) * env.Settings.Float(ctx, settings.KeyPricePerEgg, settings.DefaultPricePerEgg)
	}

	return Prompt{
		Text: fmt.Sprintf("Sale summary\nSold: %s\nRevenue: %.2f\nPayment: %s\nCustomer: %s\n\nSave this sale?",
			what, revenue, state.payment, state.customerName),
		Options: confirmOptions(),
	}
}
