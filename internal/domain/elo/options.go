package elo

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithKFactors sets the stable and volatile K-factors. Non-positive values
// are ignored.
func WithKFactors(stable, volatile float64) Option {
	return func(e *Engine) {
		if stable > 0 {
			e.kStable = stable
		}
		if volatile > 0 {
			e.kVolatile = volatile
		}
	}
}

// WithVolatileMatchCount sets how many matches a team plays before it moves
// from the volatile to the stable K-factor.
func WithVolatileMatchCount(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.volatileMatches = n
		}
	}
}

// WithHomeAdvantage sets the rating bonus the home side receives inside the
// expectation formula.
func WithHomeAdvantage(points float64) Option {
	return func(e *Engine) {
		e.homeAdvantage = points
	}
}

// WithBaseRating sets the rating of unseen teams.
func WithBaseRating(rating float64) Option {
	return func(e *Engine) {
		if rating > 0 {
			e.baseRating = rating
		}
	}
}

// WithStrictOrdering makes ValidateBatch reject out-of-order and duplicate
// matches instead of accepting every batch.
func WithStrictOrdering(strict bool) Option {
	return func(e *Engine) {
		e.strict = strict
	}
}
