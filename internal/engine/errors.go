package engine

import "errors"

// Fatal errors: Run returns these and no fragment is touched.
var (
	ErrCapacityProbe = errors.New("capacity probe failed")
	ErrNoCapacity    = errors.New("no free capacity to probe")
)

// Per-fragment faults. They are recorded on the Fragment and folded into the tally;
// they never abort a session.
var (
	ErrFragmentAllocation = errors.New("fragment allocation failed")
	ErrWrite              = errors.New("write failed")
	ErrWriteTimeout       = errors.New("write exceeded adaptive timeout")
	ErrVerifyMismatch     = errors.New("fingerprint mismatch")
	ErrVerifyRead         = errors.New("verify read failed")
)
