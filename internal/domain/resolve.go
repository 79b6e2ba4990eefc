package domain

// SelectApplicable returns the candidate matching q that outranks every other
// match, or false when none matches. Non-matching candidates are ignored, so
// stores may return a superset. The result does not depend on input order.
func SelectApplicable(candidates []Price, q PriceQuery) (Price, bool) {
	var (
		best  Price
		found bool
	)
	for _, c := range candidates {
		if !c.Matches(q) {
			continue
		}
		if !found || c.Outranks(best) {
			best, found = c, true
		}
	}
	return best, found
}
