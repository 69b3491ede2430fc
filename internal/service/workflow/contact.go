package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/avionyx/farmhand/internal/domain/models"
	"github.com/avionyx/farmhand/internal/service/ledger"
)

// Contact steps.
const (
	StepContactName    Step = "name"
	StepContactRole    Step = "role"
	StepContactPhone   Step = "phone"
	StepContactConfirm Step = "confirm"
)

type contactState struct {
	operatorID string
	name       string
	role       models.ContactRole
	phone      string
}

type contactWorkflow struct{}

func (w *contactWorkflow) Kind() Kind { return KindContact }

func (w *contactWorkflow) Start(_ context.Context, _ Env, operatorID string) (any, Prompt, error) {
	return &contactState{operatorID: operatorID}, w.namePrompt(), nil
}

func (w *contactWorkflow) Advance(ctx context.Context, env Env, sess *Session, in Input) (Prompt, error) {
	state := sess.State.(*contactState)
	if sess.Step == "" {
		sess.Step = StepContactName
	}

	switch sess.Step {
	case StepContactName:
		name := strings.TrimSpace(in.Text)
		if name == "" {
			return withWarning(w.namePrompt(), "Enter the contact's name."), nil
		}
		state.name = name
		sess.Step = StepContactRole
		return w.rolePrompt(), nil

	case StepContactRole:
		if in.Option == OptBack {
			sess.Step = StepContactName
			return w.namePrompt(), nil
		}
		switch in.Option {
		case "supplier":
			state.role = models.RoleSupplier
		case "customer":
			state.role = models.RoleCustomer
		case "vet":
			state.role = models.RoleVet
		case "staff":
			state.role = models.RoleStaffCt
		default:
			return withWarning(w.rolePrompt(), "Select a role."), nil
		}
		sess.Step = StepContactPhone
		return w.phonePrompt(), nil

	case StepContactPhone:
		if in.Option == OptBack {
			sess.Step = StepContactRole
			return w.rolePrompt(), nil
		}
		if in.Option != OptSkip {
			phone := strings.TrimSpace(in.Text)
			if phone != "" && !validPhone(phone) {
				return withWarning(w.phonePrompt(), "Enter digits only, with an optional leading +."), nil
			}
			state.phone = phone
		}
		sess.Step = StepContactConfirm
		return w.summaryPrompt(state), nil

	case StepContactConfirm:
		if in.Option != OptConfirm {
			return withWarning(w.summaryPrompt(state), "Select an option."), nil
		}
		contact, err := env.Ledger.CommitContact(ctx, env.StorageContext(), ledger.ContactFields{
			OperatorID: state.operatorID,
			Name:       state.name,
			Role:       state.role,
			Phone:      state.phone,
		})
		if err != nil {
			return Prompt{}, err
		}
		return Prompt{
			Text: fmt.Sprintf("Contact saved: %s (%s).", contact.Name, contact.Role),
			Done: true,
		}, nil
	}
	return Prompt{}, fmt.Errorf("contact: unknown step %q", sess.Step)
}

// validPhone accepts digits with an optional leading plus and common
// separators.
func validPhone(raw string) bool {
	stripped := strings.TrimPrefix(raw, "+")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r >= '0' && r <= '9' {
			continue
		}
		if r == ' ' || r == '-' {
			continue
		}
		return false
	}
	return true
}

func (w *contactWorkflow) namePrompt() Prompt {
	return Prompt{
		Text:    "Adding a contact. What is their name?",
		Options: []Option{{ID: OptCancel, Label: "Cancel"}},
	}
}

func (w *contactWorkflow) rolePrompt() Prompt {
	return Prompt{
		Text: "What is their relationship to the farm?",
		Options: []Option{
			{ID: "supplier", Label: "Supplier"},
			{ID: "customer", Label: "Customer"},
			{ID: "vet", Label: "Vet"},
			{ID: "staff", Label: "Staff"},
			backOption(),
		},
	}
}

func (w *contactWorkflow) phonePrompt() Prompt {
	return Prompt{
		Text: "Phone number?",
		Options: []Option{
			{ID: OptSkip, Label: "No phone"},
			backOption(),
		},
	}
}

func (w *contactWorkflow) summaryPrompt(state *contactState) Prompt {
	phone := state.phone
	if phone == "" {
		phone = "none"
	}
	return Prompt{
		Text: fmt.Sprintf("Contact summary\nName: %s\nRole: %s\nPhone: %s\n\nSave this contact?",
			state.name, state.role, phone),
		Options: confirmOptions(),
	}
}
