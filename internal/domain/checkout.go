package domain

type CheckoutState string

const (
	CheckoutStateEmpty            CheckoutState = "EMPTY"
	CheckoutStateDeliverySelected CheckoutState = "DELIVERY_SELECTED"
	CheckoutStateAddressSelected  CheckoutState = "ADDRESS_SELECTED"
	CheckoutStatePaymentPending   CheckoutState = "PAYMENT_PENDING"
	CheckoutStateCompleted        CheckoutState = "COMPLETED"
)

// transitions lists the states reachable from each state. Re-entering the
// current step (re-selecting a delivery option, changing the address) is
// allowed anywhere before completion; skipping ahead is not.
var transitions = map[CheckoutState][]CheckoutState{
	CheckoutStateEmpty:            {CheckoutStateDeliverySelected},
	CheckoutStateDeliverySelected: {CheckoutStateDeliverySelected, CheckoutStateAddressSelected},
	CheckoutStateAddressSelected:  {CheckoutStateDeliverySelected, CheckoutStateAddressSelected, CheckoutStatePaymentPending},
	CheckoutStatePaymentPending:   {CheckoutStateDeliverySelected, CheckoutStateAddressSelected, CheckoutStatePaymentPending, CheckoutStateCompleted},
	CheckoutStateCompleted:        {},
}

// CanTransitionTo reports whether moving from one checkout state to another
// is legal. Any state may reset to EMPTY (abandonment).
func CanTransitionTo(from, to CheckoutState) bool {
	if to == CheckoutStateEmpty {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateCompleted
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

// Selections carries the in-progress checkout choices across steps,
// independent of the basket's line items. Nil pointer means "not yet
// selected".
type Selections struct {
	State      CheckoutState `json:"state"`
	DeliveryID *int64        `json:"delivery_id,omitempty"`
	AddressID  *string       `json:"address_id,omitempty"`
}

func NewSelections() *Selections {
	return &Selections{State: CheckoutStateEmpty}
}
