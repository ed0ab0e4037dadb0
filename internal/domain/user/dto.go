package user

// LoginRequest mirrors the mobile client's login call: a username plus the
// dashboard role it wants. Session state beyond the returned token stays on
// the client.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Role     string `json:"role" validate:"required,role"`
}

// LoginResponse carries the directory entry and its identity token.
type LoginResponse struct {
	User    *User  `json:"user"`
	Token   string `json:"token"`
	Message string `json:"message"`
}
