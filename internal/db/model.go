package db

type Identity struct {
	// Uuid contains user's UUID without dashes in lower case
	Uuid string
	// Username contains user's username with the original casing
	Username string
	// PasswordHash contains the bcrypt hash of the user's password
	PasswordHash string
	// Skin contains the stored skin asset reference (a file name) or an empty string
	Skin string
	// SkinModel contains the skin's model, either "steve" or "alex". Empty means "steve"
	SkinModel string
	// Cape contains the stored cape asset reference (a file name) or an empty string
	Cape string
}

// JoinSession binds an authenticated identity to a target game server
// for a short window of time. The storage layer enforces its expiry,
// there is no expiration timestamp on the record itself
type JoinSession struct {
	// AccessToken contains the bearer token presented on join as-is
	AccessToken string
	// Uuid contains the identity's UUID without dashes in lower case
	Uuid string
	// Username contains the identity's username in lower case
	Username string
	// ServerId contains the target server's identifier as sent by the game client
	ServerId string
}
