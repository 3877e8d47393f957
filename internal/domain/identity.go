package domain

const (
	AuthModeApp  = "APP"
	AuthModeUser = "USER"

	UnknownUserID = "unknown_user"
)

// Identity es la identidad reenviada por el proxy delante del servicio.
type Identity struct {
	Email         string `json:"email,omitempty"`
	AccessToken   string `json:"-"`
	ForwardedUser string `json:"forwarded_user,omitempty"`
	SQLUser       string `json:"sql_user,omitempty"`
	UserID        string `json:"user_id"`
	AuthMode      string `json:"auth_mode"`
}

// HasToken indica si el proxy reenvio un access token.
func (i Identity) HasToken() bool {
	return i.AccessToken != ""
}
