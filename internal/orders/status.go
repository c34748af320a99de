package orders

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var statuses = map[Status]bool{
	StatusPending:    true,
	StatusProcessing: true,
	StatusShipped:    true,
	StatusDelivered:  true,
	StatusCancelled:  true,
}

// ParseStatus rejects anything outside the closed status set.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !statuses[st] {
		return "", ErrInvalidArgumentf("unknown status %q", s)
	}
	return st, nil
}

// CanTransition implements the status machine: cancelled is terminal,
// cancelling is only allowed from pending/processing, and the sequencing of
// the remaining states is intentionally not enforced.
func CanTransition(from, to Status) bool {
	if from == StatusCancelled {
		return false
	}
	if to == StatusCancelled {
		return Cancellable(from)
	}
	return true
}

// Cancellable reports whether an order in the given status may still be
// cancelled (shipped and delivered orders may not).
func Cancellable(from Status) bool {
	return from == StatusPending || from == StatusProcessing
}
