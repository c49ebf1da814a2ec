package session

// Decision is the outcome of gating a role-restricted view.
type Decision string

const (
	DecisionLoading       Decision = "loading"
	DecisionRedirectLogin Decision = "redirect_login"
	DecisionRedirectHome  Decision = "redirect_home"
	DecisionAllow         Decision = "allow"
)

// Guard decides whether a view requiring requiredRole ("" for any signed-in
// user) may render. Nothing role-gated renders before restoration finishes.
func Guard(st State, requiredRole string) Decision {
	switch {
	case !st.Initialized:
		return DecisionLoading
	case !st.Authenticated || st.Identity == nil:
		return DecisionRedirectLogin
	case requiredRole != "" && st.Identity.Role != requiredRole:
		return DecisionRedirectHome
	}
	return DecisionAllow
}
