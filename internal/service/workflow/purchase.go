package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/ledger"
)

// Purchase steps.
const (
	StepPurchaseItemSelect  Step = "item_select"
	StepPurchaseNewItemName Step = "new_item_name"
	StepPurchaseBagCount    Step = "bag_count"
	StepPurchaseBagWeight   Step = "bag_weight"
	StepPurchasePricePerBag Step = "price_per_bag"
	StepPurchaseAddAnother  Step = "add_another"
	StepPurchasePayment     Step = "payment"
	StepPurchaseReference   Step = "reference"
	StepPurchaseSupplier    Step = "supplier"
	StepPurchaseConfirm     Step = "confirm"
)

type purchaseLineState struct {
	line     ledger.PurchaseLine
	itemName string
	isNew    bool
}

type purchaseState struct {
	operatorID   string
	lines        []purchaseLineState
	pending      purchaseLineState
	payment      models.PaymentMethod
	reference    string
	supplierID   string
	supplierName string
}

type purchaseWorkflow struct{}

func (w *purchaseWorkflow) Kind() Kind { return KindPurchase }

func (w *purchaseWorkflow) Start(ctx context.Context, env Env, operatorID string) (any, Prompt, error) {
	state := &purchaseState{operatorID: operatorID}
	prompt, err := w.itemSelectPrompt(ctx, env, nil)
	if err != nil {
		return nil, Prompt{}, err
	}
	return state, prompt, nil
}

func (w *purchaseWorkflow) Advance(ctx context.Context, env Env, sess *Session, in Input) (Prompt, error) {
	state := sess.State.(*purchaseState)
	if sess.Step == "" {
		sess.Step = StepPurchaseItemSelect
	}

	switch sess.Step {
	case StepPurchaseItemSelect:
		if in.Option == OptNew {
			state.pending = purchaseLineState{isNew: true}
			sess.Step = StepPurchaseNewItemName
			return w.newItemNamePrompt(), nil
		}
		item, err := env.Store.InventoryItemByID(ctx, in.Value())
		if err != nil {
			if err == repository.ErrNotFound {
				prompt, perr := w.itemSelectPrompt(ctx, env, sess)
				if perr != nil {
					return Prompt{}, perr
				}
				return withWarning(prompt, "Pick an item from the list or choose New item."), nil
			}
			return Prompt{}, err
		}
		state.pending = purchaseLineState{
			line:     ledger.PurchaseLine{ItemID: item.ID},
			itemName: item.Name,
		}
		sess.Step = StepPurchaseBagCount
		return w.bagCountPrompt(state), nil

	case StepPurchaseNewItemName:
		if in.Option == OptBack {
			return w.backToItemSelect(ctx, env, sess)
		}
		name := strings.TrimSpace(in.Text)
		if name == "" {
			return withWarning(w.newItemNamePrompt(), "Enter a name for the new feed."), nil
		}
		if _, err := env.Store.InventoryItemByName(ctx, name); err == nil {
			return withWarning(w.newItemNamePrompt(),
				fmt.Sprintf("An item named %q already exists. Pick it from the list or choose another name.", name)), nil
		} else if err != repository.ErrNotFound {
			return Prompt{}, err
		}
		state.pending.line.ItemName = name
		state.pending.itemName = name
		sess.Step = StepPurchaseBagCount
		return w.bagCountPrompt(state), nil

	case StepPurchaseBagCount:
		if in.Option == OptBack {
			if state.pending.isNew {
				sess.Step = StepPurchaseNewItemName
				return w.newItemNamePrompt(), nil
			}
			return w.backToItemSelect(ctx, env, sess)
		}
		bags, ok := parsePositiveFloat(in.Value())
		if !ok {
			return withWarning(w.bagCountPrompt(state), "Please enter a positive number of bags."), nil
		}
		state.pending.line.Bags = bags
		if state.pending.isNew {
			sess.Step = StepPurchaseBagWeight
			return w.bagWeightPrompt(ctx, env), nil
		}
		sess.Step = StepPurchasePricePerBag
		return w.pricePerBagPrompt(state), nil

	case StepPurchaseBagWeight:
		if in.Option == OptBack {
			sess.Step = StepPurchaseBagCount
			return w.bagCountPrompt(state), nil
		}
		if in.Option != OptSkip {
			weight, ok := parsePositiveFloat(in.Value())
			if !ok {
				return withWarning(w.bagWeightPrompt(ctx, env), "Please enter a positive weight in kg, or skip for the default."), nil
			}
			state.pending.line.BagWeight = weight
		}
		sess.Step = StepPurchasePricePerBag
		return w.pricePerBagPrompt(state), nil

	case StepPurchasePricePerBag:
		if in.Option == OptBack {
			if state.pending.isNew {
				sess.Step = StepPurchaseBagWeight
				return w.bagWeightPrompt(ctx, env), nil
			}
			sess.Step = StepPurchaseBagCount
			return w.bagCountPrompt(state), nil
		}
		price, ok := parsePositiveFloat(in.Value())
		if !ok {
			return withWarning(w.pricePerBagPrompt(state), "Please enter a positive price per bag."), nil
		}
		state.pending.line.PricePerBag = price
		state.lines = append(state.lines, state.pending)
		state.pending = purchaseLineState{}
		sess.Step = StepPurchaseAddAnother
		return Prompt{
			Text: fmt.Sprintf("Item recorded (%d so far). Add another item to this purchase?", len(state.lines)),
			Options: []Option{
				{ID: OptAdd, Label: "Add another item"},
				{ID: OptDone, Label: "Done, continue to payment"},
			},
		}, nil

	case StepPurchaseAddAnother:
		if in.Option == OptAdd {
			return w.backToItemSelect(ctx, env, sess)
		}
		sess.Step = StepPurchasePayment
		return w.paymentPrompt(), nil

	case StepPurchasePayment:
		if in.Option == OptBack {
			sess.Step = StepPurchaseAddAnother
			return Prompt{
				Text: "Add another item to this purchase?",
				Options: []Option{
					{ID: OptAdd, Label: "Add another item"},
					{ID: OptDone, Label: "Done, continue to payment"},
				},
			}, nil
		}
		method, ok := parsePaymentMethod(in.Option)
		if !ok {
			return withWarning(w.paymentPrompt(), "Select a payment method."), nil
		}
		state.payment = method
		if method.Electronic() {
			sess.Step = StepPurchaseReference
			return w.referencePrompt(), nil
		}
		return w.supplierPrompt(ctx, env, sess)

	case StepPurchaseReference:
		if in.Option == OptBack {
			sess.Step = StepPurchasePayment
			return w.paymentPrompt(), nil
		}
		if in.Option != OptSkip {
			state.reference = strings.TrimSpace(in.Text)
		}
		return w.supplierPrompt(ctx, env, sess)

	case StepPurchaseSupplier:
		switch in.Option {
		case OptBack:
			sess.Step = StepPurchasePayment
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
		return w.summaryPrompt(ctx, env, sess, state), nil

	case StepPurchaseConfirm:
		if in.Option != OptConfirm {
			return withWarning(w.summaryPrompt(ctx, env, sess, state), "Select an option."), nil
		}
		return w.commit(ctx, env, sess, state)
	}
	return Prompt{}, fmt.Errorf("purchase: unknown step %q", sess.Step)
}

func (w *purchaseWorkflow) commit(ctx context.Context, env Env, sess *Session, state *purchaseState) (Prompt, error) {
	fields := ledger.PurchaseFields{
		OperatorID: state.operatorID,
		Payment:    state.payment,
		Reference:  state.reference,
		SupplierID: state.supplierID,
	}
	for _, line := range state.lines {
		fields.Lines = append(fields.Lines, line.line)
	}

	result, err := env.Ledger.CommitPurchase(ctx, env.StorageContext(), fields)
	if err != nil {
		if fe, ok := ledger.AsFeasibility(err); ok {
			// A new item's name was taken between the step check and the
			// commit. Reopen that line for a different name.
			return w.reopenCollidedLine(sess, state, fe), nil
		}
		return Prompt{}, err
	}

	return Prompt{
		Text: fmt.Sprintf("Purchase saved.\nStock added: %.1f kg\nTotal cost: %.2f\nPaid by %s to %s.",
			result.AddedKg, result.TotalCost, state.payment, state.supplierName),
		Done: true,
	}, nil
}

func (w *purchaseWorkflow) reopenCollidedLine(sess *Session, state *purchaseState, fe *ledger.FeasibilityError) Prompt {
	for i, line := range state.lines {
		if line.isNew && strings.Contains(fe.Reason, line.itemName) {
			state.pending = line
			state.lines = append(state.lines[:i], state.lines[i+1:]...)
			break
		}
	}
	sess.Step = StepPurchaseNewItemName
	return withWarning(w.newItemNamePrompt(), "That item name was just taken. Choose another name.")
}

func (w *purchaseWorkflow) backToItemSelect(ctx context.Context, env Env, sess *Session) (Prompt, error) {
	state := sess.State.(*purchaseState)
	state.pending = purchaseLineState{}
	return w.itemSelectPrompt(ctx, env, sess)
}

func (w *purchaseWorkflow) itemSelectPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
	items, err := env.Store.ListInventoryItems(ctx, repository.InventoryFilter{Type: models.ItemFeed})
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to list feed items: %w", err)
	}
	options := make([]Option, 0, len(items)+2)
	for _, item := range items {
		options = append(options, Option{
			ID:    item.ID,
			Label: fmt.Sprintf("%s (%.1f %s in stock)", item.Name, item.Quantity, item.Unit),
		})
	}
	options = append(options,
		Option{ID: OptNew, Label: "New item"},
		Option{ID: OptCancel, Label: "Cancel"},
	)
	if sess != nil {
		sess.Step = StepPurchaseItemSelect
	}
	return Prompt{
		Text:    "What did you buy?",
		Options: options,
	}, nil
}

func (w *purchaseWorkflow) newItemNamePrompt() Prompt {
	return Prompt{
		Text:    "Name of the new feed item?",
		Options: []Option{backOption()},
	}
}

func (w *purchaseWorkflow) bagCountPrompt(state *purchaseState) Prompt {
	return Prompt{
		Text:    fmt.Sprintf("How many bags of %s?", state.pending.itemName),
		Options: []Option{backOption()},
	}
}

func (w *purchaseWorkflow) bagWeightPrompt(ctx context.Context, env Env) Prompt {
	defaultWeight := env.Settings.BagWeightFor(ctx, "")
	return Prompt{
		Text: fmt.Sprintf("Weight per bag in kg? (default %.0f kg)", defaultWeight),
		Options: []Option{
			{ID: OptSkip, Label: fmt.Sprintf("Use default (%.0f kg)", defaultWeight)},
			backOption(),
		},
	}
}

func (w *purchaseWorkflow) pricePerBagPrompt(state *purchaseState) Prompt {
	return Prompt{
		Text:    fmt.Sprintf("Price per bag of %s?", state.pending.itemName),
		Options: []Option{backOption()},
	}
}

func (w *purchaseWorkflow) paymentPrompt() Prompt {
	return Prompt{
		Text:    "How was it paid?",
		Options: append(paymentOptions(), backOption()),
	}
}

func (w *purchaseWorkflow) referencePrompt() Prompt {
	return Prompt{
		Text: "Transaction reference? (code or receipt number)",
		Options: []Option{
			{ID: OptSkip, Label: "No reference"},
			backOption(),
		},
	}
}

func (w *purchaseWorkflow) supplierPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
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
	sess.Step = StepPurchaseSupplier
	return Prompt{
		Text:    "Who supplied it?",
		Options: options,
	}, nil
}

func (w *purchaseWorkflow) summaryPrompt(ctx context.Context, env Env, sess *Session, state *purchaseState) Prompt {
	sess.Step = StepPurchaseConfirm

	var parts []string
	var total float64
	for _, line := range state.lines {
		weight := line.line.BagWeight
		if weight <= 0 {
			weight = env.Settings.BagWeightFor(ctx, line.line.ItemID)
		}
		cost := line.line.Bags * line.line.PricePerBag
		total += cost
		parts = append(parts, fmt.Sprintf("%s: %.1f bags x %.0f kg @ %.2f = %.2f",
			line.itemName, line.line.Bags, weight, line.line.PricePerBag, cost))
	}

	reference := state.reference
	if reference == "" {
		reference = "none"
	}
	return Prompt{
		Text: fmt.Sprintf("Purchase summary\n%s\nTotal: %.2f\nPayment: %s (ref: %s)\nSupplier: %s\n\nSave this purchase?",
			strings.Join(parts, "\n"), total, state.payment, reference, state.supplierName),
		Options: confirmOptions(),
	}
}

// parsePaymentMethod maps an option id to a payment method.
func parsePaymentMethod(option string) (models.PaymentMethod, bool) {
	switch option {
	case "cash":
		return models.PayCash, true
	case "mpesa":
		return models.PayMpesa, true
	case "bank":
		return models.PayBank, true
	case "credit":
		return models.PayCredit, true
	}
	return "", false
}

// paymentOptions is the shared payment method menu.
func paymentOptions() []Option {
	return []Option{
		{ID: "cash", Label: "Cash"},
		{ID: "mpesa", Label: "M-Pesa"},
		{ID: "bank", Label: "Bank transfer"},
		{ID: "credit", Label: "On credit"},
	}
}
