package model

// Workspace is a billing and asset scope on the service.
type Workspace struct {
	ID       string
	Name     string
	Personal bool
}

// Account describes the authenticated user and every workspace the token
// can reach. Workspaces always lists the personal workspace first.
type Account struct {
	ID         string
	Email      string
	Workspaces []Workspace
}
