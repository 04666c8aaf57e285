package subarray

import "errors"

var (
	ErrInvalidDim    = errors.New("dimension index out of range")
	ErrInvalidRange  = errors.New("range lower bound exceeds the upper bound")
	ErrRangeNaN      = errors.New("range bounds may not be NaN")
	ErrOutOfDomain   = errors.New("range lies wholly outside the dimension domain")
	ErrInvalidLayout = errors.New("subarray layout is not valid")
	ErrRangeIdx      = errors.New("flattened range index out of range")
	ErrNoOverlap     = errors.New("tile overlap has not been computed")
	ErrDenseEst      = errors.New("result estimation is not supported for dense arrays yet")
	ErrBudgetVarKind = errors.New("budget kind does not match the attribute's size kind")
	ErrZeroBudget    = errors.New("result budget must be at least 1 byte")
)
