package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/repository"
	"github.com/avionyx/farmhand/internal/service/ledger"
)

// DailyLog steps.
const (
	StepDailyEggsCollected   Step = "eggs_collected"
	StepDailyEggsBroken      Step = "eggs_broken"
	StepDailyFeedSelect      Step = "feed_select"
	StepDailyFeedAmount      Step = "feed_amount"
	StepDailyFeedUnit        Step = "feed_unit"
	StepDailyFeedAnother     Step = "feed_another"
	StepDailyMortalityCheck  Step = "mortality_check"
	StepDailyMortalityCount  Step = "mortality_count"
	StepDailyMortalityReason Step = "mortality_reason"
	StepDailyConfirm         Step = "confirm"
)

type feedLine struct {
	usage    ledger.FeedUsage
	itemName string
	stockKg  float64
}

type dailyLogState struct {
	operatorID      string
	eggsSkipped     bool
	eggsCollected   int
	eggsBroken      int
	feeds           []feedLine
	pending         feedLine
	mortalityCount  int
	mortalityReason string
}

type dailyLogWorkflow struct{}

func (w *dailyLogWorkflow) Kind() Kind { return KindDailyLog }

func (w *dailyLogWorkflow) Start(ctx context.Context, env Env, operatorID string) (any, Prompt, error) {
	suggestion := ""
	today := models.DateKey(env.Now())
	if prior, err := env.Store.LatestDailyBefore(ctx, today); err == nil && prior.EggsCollected > 0 {
		suggestion = fmt.Sprintf(" (yesterday: %d)", prior.EggsCollected)
	}
	state := &dailyLogState{operatorID: operatorID}
	prompt := Prompt{
		Text: "Daily update, step 1 of 3: eggs.\nHow many eggs were collected?" + suggestion,
		Options: []Option{
			{ID: OptSkip, Label: "Skip eggs"},
			{ID: OptCancel, Label: "Cancel"},
		},
	}
	return state, prompt, nil
}

func (w *dailyLogWorkflow) Advance(ctx context.Context, env Env, sess *Session, in Input) (Prompt, error) {
	state := sess.State.(*dailyLogState)
	if sess.Step == "" {
		sess.Step = StepDailyEggsCollected
	}

	switch sess.Step {
	case StepDailyEggsCollected:
		if in.Option == OptSkip {
			state.eggsSkipped = true
			return w.feedSelectPrompt(ctx, env, sess)
		}
		count, ok := parseNonNegativeInt(in.Value())
		if !ok {
			return withWarning(w.eggsCollectedPrompt(), "Please enter a whole number."), nil
		}
		state.eggsCollected = count
		state.eggsSkipped = false
		sess.Step = StepDailyEggsBroken
		return w.eggsBrokenPrompt(), nil

	case StepDailyEggsBroken:
		if in.Option == OptBack {
			sess.Step = StepDailyEggsCollected
			return w.eggsCollectedPrompt(), nil
		}
		broken, ok := parseNonNegativeInt(in.Value())
		if !ok {
			return withWarning(w.eggsBrokenPrompt(), "Please enter a whole number."), nil
		}
		if broken > state.eggsCollected {
			return withWarning(w.eggsBrokenPrompt(),
				fmt.Sprintf("Broken eggs (%d) cannot exceed collected (%d).", broken, state.eggsCollected)), nil
		}
		state.eggsBroken = broken
		return w.feedSelectPrompt(ctx, env, sess)

	case StepDailyFeedSelect:
		switch in.Option {
		case OptBack:
			sess.Step = StepDailyEggsCollected
			return w.eggsCollectedPrompt(), nil
		case OptSkip:
			return w.mortalityCheckPrompt(sess), nil
		case OptGeneric:
			state.pending = feedLine{}
			sess.Step = StepDailyFeedAmount
			return w.feedAmountPrompt(state), nil
		}
		item, err := env.Store.InventoryItemByID(ctx, in.Value())
		if err != nil {
			if err == repository.ErrNotFound {
				prompt, perr := w.feedSelectPrompt(ctx, env, sess)
				if perr != nil {
					return Prompt{}, perr
				}
				return withWarning(prompt, "That feed is no longer available."), nil
			}
			return Prompt{}, err
		}
		state.pending = feedLine{
			usage:    ledger.FeedUsage{ItemID: item.ID},
			itemName: item.Name,
			stockKg:  item.Quantity,
		}
		sess.Step = StepDailyFeedAmount
		return w.feedAmountPrompt(state), nil

	case StepDailyFeedAmount:
		if in.Option == OptBack {
			return w.feedSelectPrompt(ctx, env, sess)
		}
		amount, ok := parsePositiveFloat(in.Value())
		if !ok {
			return withWarning(w.feedAmountPrompt(state), "Please enter a positive number."), nil
		}
		state.pending.usage.Amount = amount
		sess.Step = StepDailyFeedUnit
		return w.feedUnitPrompt(state), nil

	case StepDailyFeedUnit:
		if in.Option == OptBack {
			sess.Step = StepDailyFeedAmount
			return w.feedAmountPrompt(state), nil
		}
		var unit ledger.FeedUnit
		switch in.Option {
		case "kg":
			unit = ledger.UnitKg
		case "bags":
			unit = ledger.UnitBags
		default:
			return withWarning(w.feedUnitPrompt(state), "Select a unit."), nil
		}
		state.pending.usage.Unit = unit

		// Feasibility gate against live stock before the line is accepted.
		if state.pending.usage.ItemID != "" {
			neededKg := state.pending.usage.Amount
			if unit == ledger.UnitBags {
				neededKg *= env.Settings.BagWeightFor(ctx, state.pending.usage.ItemID)
			}
			if neededKg > state.pending.stockKg {
				sess.Step = StepDailyFeedAmount
				return withWarning(w.feedAmountPrompt(state), fmt.Sprintf(
					"Not enough %s: stock %.1f kg, requested %.1f kg. Enter a lower amount.",
					state.pending.itemName, state.pending.stockKg, neededKg)), nil
			}
		}
		state.feeds = append(state.feeds, state.pending)
		state.pending = feedLine{}
		sess.Step = StepDailyFeedAnother
		return Prompt{
			Text: "Feed recorded. Add another feed type?",
			Options: []Option{
				{ID: OptAdd, Label: "Add another feed"},
				{ID: OptDone, Label: "Done with feed"},
			},
		}, nil

	case StepDailyFeedAnother:
		if in.Option == OptAdd {
			return w.feedSelectPrompt(ctx, env, sess)
		}
		return w.mortalityCheckPrompt(sess), nil

	case StepDailyMortalityCheck:
		switch in.Option {
		case OptBack:
			return w.feedSelectPrompt(ctx, env, sess)
		case "zero":
			state.mortalityCount = 0
			return w.summaryPrompt(sess, state), nil
		case "record":
			sess.Step = StepDailyMortalityCount
			return w.mortalityCountPrompt(), nil
		}
		return withWarning(w.mortalityCheckPromptBody(), "Select an option."), nil

	case StepDailyMortalityCount:
		if in.Option == OptBack {
			return w.mortalityCheckPrompt(sess), nil
		}
		count, ok := parseNonNegativeInt(in.Value())
		if !ok {
			return withWarning(w.mortalityCountPrompt(), "Please enter a whole number."), nil
		}
		state.mortalityCount = count
		if count == 0 {
			return w.summaryPrompt(sess, state), nil
		}
		sess.Step = StepDailyMortalityReason
		return w.mortalityReasonPrompt(), nil

	case StepDailyMortalityReason:
		if in.Option == OptBack {
			sess.Step = StepDailyMortalityCount
			return w.mortalityCountPrompt(), nil
		}
		if in.Value() == "" {
			return withWarning(w.mortalityReasonPrompt(), "Select a reason."), nil
		}
		state.mortalityReason = in.Value()
		return w.summaryPrompt(sess, state), nil

	case StepDailyConfirm:
		switch in.Option {
		case "edit_eggs":
			state.eggsCollected, state.eggsBroken, state.eggsSkipped = 0, 0, false
			sess.Step = StepDailyEggsCollected
			return w.eggsCollectedPrompt(), nil
		case "edit_feed":
			state.feeds = nil
			return w.feedSelectPrompt(ctx, env, sess)
		case "edit_mortality":
			return w.mortalityCheckPrompt(sess), nil
		case OptConfirm:
			return w.commit(ctx, env, sess, state)
		}
		return withWarning(w.summaryPrompt(sess, state), "Select an option."), nil
	}
	return Prompt{}, fmt.Errorf("daily log: unknown step %q", sess.Step)
}

func (w *dailyLogWorkflow) commit(ctx context.Context, env Env, sess *Session, state *dailyLogState) (Prompt, error) {
	fields := ledger.DailyLogFields{
		OperatorID:      state.operatorID,
		EggsSkipped:     state.eggsSkipped,
		EggsCollected:   state.eggsCollected,
		EggsBroken:      state.eggsBroken,
		MortalityCount:  state.mortalityCount,
		MortalityReason: state.mortalityReason,
	}
	for _, line := range state.feeds {
		fields.Feeds = append(fields.Feeds, line.usage)
	}

	result, err := env.Ledger.CommitDailyLog(ctx, env.StorageContext(), fields)
	if err != nil {
		if fe, ok := ledger.AsFeasibility(err); ok {
			// Stock moved between the step-level check and the commit. Reopen
			// the offending feed line for amount entry, keep the rest.
			return w.reopenFeedLine(sess, state, fe), nil
		}
		return Prompt{}, err
	}

	return Prompt{
		Text: fmt.Sprintf("Records updated for %s.\nGood eggs: %d (stock %.0f)\nFeed used: %.2f kg (cost %.2f)\nMortality: %d",
			result.Date, result.EggsGood, result.EggStock, result.FeedUsedKg, result.FeedCost, state.mortalityCount),
		Done: true,
	}, nil
}

// reopenFeedLine pulls the feed line named in the feasibility failure out of
// the accumulated list and returns the workflow to its amount step.
func (w *dailyLogWorkflow) reopenFeedLine(sess *Session, state *dailyLogState, fe *ledger.FeasibilityError) Prompt {
	for i, line := range state.feeds {
		if strings.Contains(fe.Reason, line.itemName) {
			state.pending = line
			state.pending.stockKg = fe.Current
			state.feeds = append(state.feeds[:i], state.feeds[i+1:]...)
			break
		}
	}
	sess.Step = StepDailyFeedAmount
	return withWarning(w.feedAmountPrompt(state), fmt.Sprintf(
		"Not enough stock: have %.1f kg, requested %.1f kg. Enter a lower amount.", fe.Current, fe.Requested))
}

func (w *dailyLogWorkflow) eggsCollectedPrompt() Prompt {
	return Prompt{
		Text: "How many eggs were collected?",
		Options: []Option{
			{ID: OptSkip, Label: "Skip eggs"},
			{ID: OptCancel, Label: "Cancel"},
		},
	}
}

func (w *dailyLogWorkflow) eggsBrokenPrompt() Prompt {
	return Prompt{
		Text:    "How many eggs were broken or bad?",
		Options: []Option{backOption()},
	}
}

func (w *dailyLogWorkflow) feedSelectPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
	items, err := env.Store.ListInventoryItems(ctx, repository.InventoryFilter{
		Type:         models.ItemFeed,
		PositiveOnly: true,
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to list feed items: %w", err)
	}

	options := make([]Option, 0, len(items)+3)
	for _, item := range items {
		label := fmt.Sprintf("%s (%.1f %s)", item.Name, item.Quantity, item.Unit)
		if item.Unit == "kg" {
			bagWeight := env.Settings.BagWeightFor(ctx, item.ID)
			label = fmt.Sprintf("%s (%.1f kg / ~%.1f bags)", item.Name, item.Quantity, item.Quantity/bagWeight)
		}
		options = append(options, Option{ID: item.ID, Label: label})
	}
	options = append(options,
		Option{ID: OptGeneric, Label: "Generic / untracked feed"},
		Option{ID: OptSkip, Label: "Skip feed"},
		backOption(),
	)
	sess.Step = StepDailyFeedSelect
	return Prompt{
		Text:    "Step 2 of 3: feed.\nWhat feed did you use today?",
		Options: options,
	}, nil
}

func (w *dailyLogWorkflow) feedAmountPrompt(state *dailyLogState) Prompt {
	name := state.pending.itemName
	if name == "" {
		name = "feed"
	}
	return Prompt{
		Text:    fmt.Sprintf("How much %s was used (kg or bags)?", name),
		Options: []Option{backOption()},
	}
}

func (w *dailyLogWorkflow) feedUnitPrompt(state *dailyLogState) Prompt {
	return Prompt{
		Text: fmt.Sprintf("Unit for %.1f?", state.pending.usage.Amount),
		Options: []Option{
			{ID: "kg", Label: "Kilograms (kg)"},
			{ID: "bags", Label: "Bags"},
			backOption(),
		},
	}
}

func (w *dailyLogWorkflow) mortalityCheckPromptBody() Prompt {
	return Prompt{
		Text: "Step 3 of 3: mortality.\nAny losses today?",
		Options: []Option{
			{ID: "zero", Label: "All good (0 deaths)"},
			{ID: "record", Label: "Record mortality"},
			backOption(),
		},
	}
}

func (w *dailyLogWorkflow) mortalityCheckPrompt(sess *Session) Prompt {
	sess.Step = StepDailyMortalityCheck
	return w.mortalityCheckPromptBody()
}

func (w *dailyLogWorkflow) mortalityCountPrompt() Prompt {
	return Prompt{
		Text:    "How many birds died?",
		Options: []Option{backOption()},
	}
}

func (w *dailyLogWorkflow) mortalityReasonPrompt() Prompt {
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

func (w *dailyLogWorkflow) summaryPrompt(sess *Session, state *dailyLogState) Prompt {
	sess.Step = StepDailyConfirm

	eggs := "skipped"
	if !state.eggsSkipped {
		eggs = fmt.Sprintf("%d collected, %d broken", state.eggsCollected, state.eggsBroken)
	}
	feed := "skipped"
	if len(state.feeds) > 0 {
		var parts []string
		for _, line := range state.feeds {
			name := line.itemName
			if name == "" {
				name = "generic"
			}
			parts = append(parts, fmt.Sprintf("%s %.1f %s", name, line.usage.Amount, line.usage.Unit))
		}
		feed = strings.Join(parts, "; ")
	}

	return Prompt{
		Text: fmt.Sprintf("Daily summary\nEggs: %s\nFeed: %s\nMortality: %d\n\nSave this record?",
			eggs, feed, state.mortalityCount),
		Options: []Option{
			{ID: OptConfirm, Label: "Save record"},
			{ID: "edit_eggs", Label: "Edit eggs"},
			{ID: "edit_feed", Label: "Edit feed"},
			{ID: "edit_mortality", Label: "Edit mortality"},
			{ID: OptCancel, Label: "Cancel"},
		},
	}
}
