package hydra

import "log/slog"

// Credentials is a username and password pair. The password is kept as a
// byte slice so it can be wiped once the login call is done.
type Credentials struct {
	Username string
	password []byte
}

// NewCredentials copies password into a new Credentials value.
func NewCredentials(username, password string) *Credentials {
	return &Credentials{
		Username: username,
		password: []byte(password),
	}
}

// HasPassword reports whether a non-empty password is held.
func (c *Credentials) HasPassword() bool {
	return len(c.password) > 0
}

// Clear overwrites the password and drops it. Safe to call more than once.
func (c *Credentials) Clear() {
	if c == nil {
		return
	}
	clear(c.password)
	c.password = nil
}

// LogValue keeps the password out of structured logs.
func (c *Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", c.Username),
		slog.String("password", "[REDACTED]"),
	)
}

func (c *Credentials) String() string {
	return c.Username + ":[REDACTED]"
}
