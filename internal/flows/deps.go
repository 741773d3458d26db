package flows

// Deps holds the dependencies of every flow. Builder fills it once; engine
// methods pass the matching field to Run*.
type Deps struct {
	Refresh RefreshDeps
	Logout  LogoutDeps
}
