package scoring

import "errors"

// ErrInvalidWeights is returned when weights would break score monotonicity.
var ErrInvalidWeights = errors.New("invalid scoring weights")
