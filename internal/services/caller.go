package services

// Caller describes the request side of an access check. It only feeds crawler
// detection, analytics and audit; it never decides a gate.
type Caller struct {
	IPAddress string
	UserAgent string
	Referrer  string
	// Purpose collects prefetch hints such as the Purpose, Sec-Purpose and X-Moz headers.
	Purpose string
}

// Actor is whoever performs an owner or admin action.
type Actor struct {
	ID    string
	Email string
	Admin bool
}

func GuestActor() Actor {
	return Actor{}
}

func (a Actor) IsGuest() bool {
	return a.ID == ""
}

func (a Actor) auditID() string {
	if a.IsGuest() {
		return "guest"
	}
	return a.ID
}

func (a Actor) auditEmail() string {
	if a.IsGuest() {
		return "Anonymous"
	}
	return a.Email
}
