package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyBasket       = errors.New("basket is empty, nothing to check out")
	ErrCheckoutCompleted = errors.New("checkout already completed")
)

// Step names a checkout step for redirect targets.
type Step string

const (
	StepDelivery Step = "delivery"
	StepAddress  Step = "address"
	StepPayment  Step = "payment"
)

// StepError reports out-of-order checkout navigation. It is a recoverable
// condition: callers redirect to the Redirect step instead of failing.
type StepError struct {
	Missing  Step
	Redirect Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("checkout step %q not completed yet", e.Missing)
}
