package lifecycle

import (
	"fmt"
	"strings"

	"optionsledger/src/model"
)

// ValidationError lists every constraint a user-submitted trade failed.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid trade: " + strings.Join(e.Messages, "; ")
}

// PreconditionError is returned when an operation is not allowed from the
// trade's current status. The trade is left untouched.
type PreconditionError struct {
	Op     string
	Status model.TradeStatus
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s a trade with status %s", e.Op, e.Status)
}
