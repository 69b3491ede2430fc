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

// Vaccination steps.
const (
	StepVaxFlockSelect   Step = "flock_select"
	StepVaxVaccineSelect Step = "vaccine_select"
	StepVaxBirdCount     Step = "bird_count"
	StepVaxStockUsed     Step = "stock_used"
	StepVaxNextDue       Step = "next_due"
	StepVaxVaccinator    Step = "vaccinator"
	StepVaxNotes         Step = "notes"
	StepVaxConfirm       Step = "confirm"
)

// scheduleEntry is one row of the standard poultry vaccination program,
// matched by vaccine name to suggest repeat dates.
type scheduleEntry struct {
	keyword     string
	repeatAfter time.Duration
}

var vaccineSchedule = []scheduleEntry{
	{keyword: "newcastle", repeatAfter: 30 * 24 * time.Hour},
	{keyword: "gumboro", repeatAfter: 14 * 24 * time.Hour},
	{keyword: "fowl pox", repeatAfter: 0},
	{keyword: "marek", repeatAfter: 0},
	{keyword: "typhoid", repeatAfter: 90 * 24 * time.Hour},
	{keyword: "deworm", repeatAfter: 60 * 24 * time.Hour},
}

// dosesUnit reports whether the item's stock is tracked in doses, implying
// one dose per bird vaccinated.
func dosesUnit(unit string) bool {
	u := strings.ToLower(strings.TrimSpace(unit))
	return u == "dose" || u == "doses"
}

func quickDueDays(option string) int {
	switch option {
	case "due_90":
		return 90
	case "due_30":
		return 30
	case "due_7":
		return 7
	}
	return 0
}

// suggestNextDue returns the schedule-recommended next date for the vaccine,
// or nil when the program has no repeat for it.
func suggestNextDue(vaccineName string, from time.Time) *time.Time {
	lower := strings.ToLower(vaccineName)
	for _, entry := range vaccineSchedule {
		if strings.Contains(lower, entry.keyword) {
			if entry.repeatAfter == 0 {
				return nil
			}
			due := from.Add(entry.repeatAfter)
			return &due
		}
	}
	return nil
}

type vaccinationState struct {
	operatorID   string
	flockID      string
	flockName    string
	flockCount   int
	flockAgeDays int
	vaccineID    string
	vaccineName  string
	vaccineStock float64
	vaccineUnit  string
	birds        int
	stockUsed    float64
	nextDue      *time.Time
	vaccinator   string
	notes        string
}

type vaccinationWorkflow struct{}

func (w *vaccinationWorkflow) Kind() Kind { return KindVaccination }

func (w *vaccinationWorkflow) Start(ctx context.Context, env Env, operatorID string) (any, Prompt, error) {
	state := &vaccinationState{operatorID: operatorID}
	prompt, err := w.flockSelectPrompt(ctx, env, nil)
	if err != nil {
		return nil, Prompt{}, err
	}
	return state, prompt, nil
}

func (w *vaccinationWorkflow) Advance(ctx context.Context, env Env, sess *Session, in Input) (Prompt, error) {
	state := sess.State.(*vaccinationState)
	if sess.Step == "" {
		sess.Step = StepVaxFlockSelect
	}

	switch sess.Step {
	case StepVaxFlockSelect:
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
		state.flockAgeDays = flock.AgeDays(env.Now())
		return w.vaccineSelectPrompt(ctx, env, sess, state)

	case StepVaxVaccineSelect:
		if in.Option == OptBack {
			return w.flockSelectPrompt(ctx, env, sess)
		}
		item, err := env.Store.InventoryItemByID(ctx, in.Value())
		if err != nil {
			if err == repository.ErrNotFound {
				prompt, perr := w.vaccineSelectPrompt(ctx, env, sess, state)
				if perr != nil {
					return Prompt{}, perr
				}
				return withWarning(prompt, "Select a vaccine from the list."), nil
			}
			return Prompt{}, err
		}
		state.vaccineID = item.ID
		state.vaccineName = item.Name
		state.vaccineStock = item.Quantity
		state.vaccineUnit = item.Unit
		sess.Step = StepVaxBirdCount
		return w.birdCountPrompt(state), nil

	case StepVaxBirdCount:
		if in.Option == OptBack {
			return w.vaccineSelectPrompt(ctx, env, sess, state)
		}
		var birds int
		if in.Option == "all" {
			birds = state.flockCount
		} else {
			var ok bool
			birds, ok = parsePositiveInt(in.Value())
			if !ok {
				return withWarning(w.birdCountPrompt(state), "Please enter a positive whole number."), nil
			}
			if birds > state.flockCount {
				return withWarning(w.birdCountPrompt(state),
					fmt.Sprintf("%s only has %d birds.", state.flockName, state.flockCount)), nil
			}
		}
		state.birds = birds
		// Dose-tracked vaccines use one dose per bird, so the usage amount
		// is implied unless stock cannot cover it.
		if dosesUnit(state.vaccineUnit) && float64(birds) <= state.vaccineStock {
			state.stockUsed = float64(birds)
			sess.Step = StepVaxNextDue
			return w.nextDuePrompt(env, state), nil
		}
		sess.Step = StepVaxStockUsed
		return w.stockUsedPrompt(state), nil

	case StepVaxStockUsed:
		if in.Option == OptBack {
			sess.Step = StepVaxBirdCount
			return w.birdCountPrompt(state), nil
		}
		used, ok := parsePositiveFloat(in.Value())
		if !ok {
			return withWarning(w.stockUsedPrompt(state), "Please enter a positive amount."), nil
		}
		if used > state.vaccineStock {
			return withWarning(w.stockUsedPrompt(state), fmt.Sprintf(
				"Only %.1f %s of %s in stock.", state.vaccineStock, state.vaccineUnit, state.vaccineName)), nil
		}
		state.stockUsed = used
		sess.Step = StepVaxNextDue
		return w.nextDuePrompt(env, state), nil

	case StepVaxNextDue:
		switch in.Option {
		case OptBack:
			sess.Step = StepVaxStockUsed
			return w.stockUsedPrompt(state), nil
		case OptSkip:
			state.nextDue = nil
		case "suggested":
			state.nextDue = suggestNextDue(state.vaccineName, env.Now())
		case "due_90", "due_30", "due_7":
			due := env.Now().AddDate(0, 0, quickDueDays(in.Option))
			state.nextDue = &due
		default:
			due, ok := parseDate(in.Value())
			if !ok {
				return withWarning(w.nextDuePrompt(env, state), "Enter a date as YYYY-MM-DD, or skip."), nil
			}
			state.nextDue = &due
		}
		sess.Step = StepVaxVaccinator
		return w.vaccinatorPrompt(), nil

	case StepVaxVaccinator:
		if in.Option == OptBack {
			sess.Step = StepVaxNextDue
			return w.nextDuePrompt(env, state), nil
		}
		if in.Option != OptSkip {
			state.vaccinator = strings.TrimSpace(in.Text)
		}
		sess.Step = StepVaxNotes
		return w.notesPrompt(), nil

	case StepVaxNotes:
		if in.Option == OptBack {
			sess.Step = StepVaxVaccinator
			return w.vaccinatorPrompt(), nil
		}
		if in.Option != OptSkip {
			state.notes = strings.TrimSpace(in.Text)
		}
		sess.Step = StepVaxConfirm
		return w.summaryPrompt(state), nil

	case StepVaxConfirm:
		if in.Option != OptConfirm {
			return withWarning(w.summaryPrompt(state), "Select an option."), nil
		}
		result, err := env.Ledger.CommitVaccination(ctx, env.StorageContext(), ledger.VaccinationFields{
			OperatorID:      state.operatorID,
			FlockID:         state.flockID,
			VaccineItemID:   state.vaccineID,
			BirdsVaccinated: state.birds,
			StockUsed:       state.stockUsed,
			NextDueDate:     state.nextDue,
			Vaccinator:      state.vaccinator,
			Notes:           state.notes,
		})
		if err != nil {
			if fe, ok := ledger.AsFeasibility(err); ok {
				state.vaccineStock = fe.Current
				sess.Step = StepVaxStockUsed
				return withWarning(w.stockUsedPrompt(state), fmt.Sprintf(
					"Stock moved: %s now has %.1f %s.", state.vaccineName, fe.Current, state.vaccineUnit)), nil
			}
			return Prompt{}, err
		}
		return Prompt{
			Text: fmt.Sprintf("Vaccination recorded for %s with %s. %.1f %s of stock remaining.",
				result.FlockName, result.VaccineName, result.StockAfter, state.vaccineUnit),
			Done: true,
		}, nil
	}
	return Prompt{}, fmt.Errorf("vaccination: unknown step %q", sess.Step)
}

func (w *vaccinationWorkflow) flockSelectPrompt(ctx context.Context, env Env, sess *Session) (Prompt, error) {
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
			Label: fmt.Sprintf("%s (%d birds, %d days old)", flock.Name, flock.CurrentCount, flock.AgeDays(env.Now())),
		})
	}
	options = append(options, Option{ID: OptCancel, Label: "Cancel"})
	if sess != nil {
		sess.Step = StepVaxFlockSelect
	}
	return Prompt{
		Text:    "Which flock was vaccinated?",
		Options: options,
	}, nil
}

func (w *vaccinationWorkflow) vaccineSelectPrompt(ctx context.Context, env Env, sess *Session, state *vaccinationState) (Prompt, error) {
	items, err := env.Store.ListInventoryItems(ctx, repository.InventoryFilter{
		Type:         models.ItemMedication,
		PositiveOnly: true,
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to list medication items: %w", err)
	}
	options := make([]Option, 0, len(items)+1)
	for _, item := range items {
		options = append(options, Option{
			ID:    item.ID,
			Label: fmt.Sprintf("%s (%.1f %s)", item.Name, item.Quantity, item.Unit),
		})
	}
	options = append(options, backOption())
	sess.Step = StepVaxVaccineSelect
	return Prompt{
		Text:    fmt.Sprintf("Which vaccine was used on %s (%d days old)?", state.flockName, state.flockAgeDays),
		Options: options,
	}, nil
}

func (w *vaccinationWorkflow) birdCountPrompt(state *vaccinationState) Prompt {
	return Prompt{
		Text: fmt.Sprintf("How many birds were vaccinated? (%s has %d)", state.flockName, state.flockCount),
		Options: []Option{
			{ID: "all", Label: fmt.Sprintf("Whole flock (%d)", state.flockCount)},
			backOption(),
		},
	}
}

func (w *vaccinationWorkflow) stockUsedPrompt(state *vaccinationState) Prompt {
	return Prompt{
		Text: fmt.Sprintf("How much %s was used? (%.1f %s in stock)",
			state.vaccineName, state.vaccineStock, state.vaccineUnit),
		Options: []Option{backOption()},
	}
}

func (w *vaccinationWorkflow) nextDuePrompt(env Env, state *vaccinationState) Prompt {
	options := []Option{}
	if due := suggestNextDue(state.vaccineName, env.Now()); due != nil {
		options = append(options, Option{
			ID:    "suggested",
			Label: fmt.Sprintf("Use schedule (%s)", due.Format(models.DateLayout)),
		})
	}
	options = append(options,
		Option{ID: "due_90", Label: "In 3 months"},
		Option{ID: "due_30", Label: "In 1 month"},
		Option{ID: "due_7", Label: "In 1 week"},
		Option{ID: OptSkip, Label: "No repeat needed"},
		backOption(),
	)
	return Prompt{
		Text:    "When is the next dose due? (YYYY-MM-DD)",
		Options: options,
	}
}

func (w *vaccinationWorkflow) vaccinatorPrompt() Prompt {
	return Prompt{
		Text: "Who administered it?",
		Options: []Option{
			{ID: OptSkip, Label: "Self"},
			backOption(),
		},
	}
}

func (w *vaccinationWorkflow) notesPrompt() Prompt {
	return Prompt{
		Text: "Any notes? (reactions, batch number)",
		Options: []Option{
			{ID: OptSkip, Label: "No notes"},
			backOption(),
		},
	}
}

func (w *vaccinationWorkflow) summaryPrompt(state *vaccinationState) Prompt {
	nextDue := "none"
	if state.nextDue != nil {
		nextDue = state.nextDue.Format(models.DateLayout)
	}
	vaccinator := state.vaccinator
	if vaccinator == "" {
		vaccinator = "Self"
	}
	return Prompt{
		Text: fmt.Sprintf("Vaccination summary\nFlock: %s\nVaccine: %s (%.1f %s used)\nBirds: %d\nNext due: %s\nBy: %s\n\nSave this record?",
			state.flockName, state.vaccineName, state.stockUsed, state.vaccineUnit, state.birds, nextDue, vaccinator),
		Options: confirmOptions(),
	}
}
