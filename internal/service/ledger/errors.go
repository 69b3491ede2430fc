package ledger

import (
	"errors"
	"fmt"

	"github.com/avionyx/farmhand/internal/repository"
)

// FeasibilityError reports a commit precondition the live system state cannot
// satisfy: insufficient stock, insufficient flock count, a name collision.
// It is recoverable; the workflow returns to the offending step with the
// shortfall so the operator can adjust.
type FeasibilityError struct {
	Reason    string
	Current   float64
	Requested float64
}

func (e *FeasibilityError) Error() string {
	return fmt.Sprintf("%s: have %.2f, requested %.2f", e.Reason, e.Current, e.Requested)
}

// AsFeasibility extracts a FeasibilityError from an error chain.
func AsFeasibility(err error) (*FeasibilityError, bool) {
	var fe *FeasibilityError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsNotFound reports whether a referenced entity disappeared between
// selection and commit. Workflows abort and clear the session on this.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func insufficient(reason string, current, requested float64) error {
	return &FeasibilityError{Reason: reason, Current: current, Requested: requested}
}
