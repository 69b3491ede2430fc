package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/ledger"
)

// InventoryAdjustment steps.
const (
	StepAdjustItemSelect Step = "item_select"
	StepAdjustDelta      Step = "delta"
	StepAdjustReason     Step = "reason"
	StepAdjustConfirm    Step = "confirm"
)

type adjustmentState struct {
	operatorID string
	itemID     string
	itemName   string
	itemStock  float64
	itemUnit   string
	delta      float64
	reason     string
}

type adjustmentWorkflow struct{}

func (w *adjustmentWorkflow) Kind() Kind { return KindAdjustment }

func (w *adjustmentWorkflow) Start(ctx context.Context, env Env, operatorID string) (any, Prompt, error) {
	state := &adjustmentState{operatorID: operatorID}
	prompt, err := w.itemSelectPrompt(ctx, env, nil)
	if err != nil {
		return nil, Prompt{}, err
	}
	return state, prompt, nil
}

func (w *adjustmentWorkflow) Advance(ctx context.Context, env Env, sess *Session, in Input) (Prompt, error) {
	state := sess.State.(*adjustmentState)
	if sess.Step == "" {
		sess.Step = StepAdjustItemSelect
	}

	switch sess.Step {
	case StepAdjustItemSelect:
		item, err := env.Store.InventoryItemByID(ctx, in.Value())
		if err != nil {
			if err == repository.ErrNotFound {
				prompt, perr := w.itemSelectPrompt(ctx, env, sess)
				if perr != nil {
					return Prompt{}, perr
				}
				return withWarning(prompt, "Select an item from the list."), nil
			}
			return Prompt{}, err
		}
		state.itemID = item.ID
		state.itemName = item.Name
		state.itemStock = item.Quantity
		state.itemUnit = item.Unit
		sess.Step = StepAdjustDelta
		return w.deltaPrompt(state), nil

	case StepAdjustDelta:
		if in.Option == OptBack {
			return w.itemSelectPrompt(ctx, env, sess)
		}
		delta, ok := parseSignedFloat(in.Value())
		if !ok {
			return withWarning(w.deltaPrompt(state), "Enter a non-zero number, negative to deduct."), nil
		}
		if state.itemStock+delta < 0 {
			return withWarning(w.deltaPrompt(state), fmt.Sprintf(
				"Stock cannot go negative: %s has %.1f %s.", state.itemName, state.itemStock, state.itemUnit)), nil
		}
		state.delta = delta
		sess.Step = StepAdjustReason
		return w.reasonPrompt(), nil

	case StepAdjustReason:
		if in.Option == OptBack {
			sess.Step = StepAdjustDelta
			return w.deltaPrompt(state), nil
		}
		reason := strings.TrimSpace(in.Value())
		if reason == "" {
			return withWarning(w.reasonPrompt(), "A reason is required for stock corrections."), nil
		}
		state.reason = reason
		sess.Step = StepAdjustConfirm
		return w.summaryPrompt(state), nil

	case StepAdjustConfirm:
		if in.Option != OptConfirm {
			return withWarning(w.summaryPrompt(state), "Select an option."), nil
		}
		result, err := env.Ledger.CommitAdjustment(ctx, env.StorageContext(), ledger.AdjustmentFields{
			OperatorID: state.operatorID,
			ItemID:     state.itemID,
			Delta:      state.delta,
			Reason:     state.reason,
		})
		if err != nil {
			if fe, ok := ledger.AsFeasibility(err); ok {
				state.itemStock = fe.Current
				sess.Step = StepAdjustDelta
				return withWarning(w.deltaPrompt(state), fmt.Sprintf(
					"Stock moved: %s now has %.1f %s. Enter a new correction.",
					state.itemName, fe.Current, state.itemUnit)), nil
			}
			return Prompt{}, err
		}
		return Prompt{
			Text: fmt.Sprintf("Adjustment saved. %s is now at %.1f %s.",
				result.ItemName, result.Quantity, state.itemUnit),
			Done: true,
		}, nil
	}
	return Prompt{}, fmt.Errorf("adjustment: unknown step %q", sess.Step)
}

func (w *adjustmentWorkflow) itemSelectPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
	items, err := env.Store.ListInventoryItems(ctx, repository.InventoryFilter{})
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to list items: %w", err)
	}
	options := make([]Option, 0, len(items)+1)
	for _, item := range items {
		options = append(options, Option{
			ID:    item.ID,
			Label: fmt.Sprintf("%s (%.1f %s)", item.Name, item.Quantity, item.Unit),
		})
	}
	options = append(options, Option{ID: OptCancel, Label: "Cancel"})
	if sess != nil {
		sess.Step = StepAdjustItemSelect
	}
	return Prompt{
		Text:    "Which item needs a stock correction?",
		Options: options,
	}, nil
}

func (w *adjustmentWorkflow) deltaPrompt(state *adjustmentState) Prompt {
	return Prompt{
		Text: fmt.Sprintf("%s has %.1f %s. Enter the correction (+ to add, - to deduct).",
			state.itemName, state.itemStock, state.itemUnit),
		Options: []Option{backOption()},
	}
}

func (w *adjustmentWorkflow) reasonPrompt() Prompt {
	return Prompt{
		Text: "Why is the correction needed?",
		Options: []Option{
			{ID: "recount", Label: "Physical recount"},
			{ID: "spoilage", Label: "Spoilage or damage"},
			{ID: "entry error", Label: "Earlier entry error"},
			backOption(),
		},
	}
}

func (w *adjustmentWorkflow) summaryPrompt(state *adjustmentState) Prompt {
	return Prompt{
		Text: fmt.Sprintf("Adjustment summary\nItem: %s\nChange: %+.1f %s (to %.1f)\nReason: %s\n\nSave this correction?",
			state.itemName, state.delta, state.itemUnit, state.itemStock+state.delta, state.reason),
		Options: confirmOptions(),
	}
}
