package contracts

import "errors"

// ErrInvalidConfiguration marks a run that cannot start: an unknown rebalance
// frequency or policy, mutually exclusive parameters, or input axes with no overlap.
// Callers test for it with errors.Is.
var ErrInvalidConfiguration = errors.New("invalid configuration")
