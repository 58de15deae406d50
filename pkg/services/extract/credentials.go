package extract

// Credentials is the authentication triple for the portal. It is loaded once
// by the caller and threaded through explicitly; nothing in this package
// reads the environment.
type Credentials struct {
	Login    string
	Password string
	URL      string
}
