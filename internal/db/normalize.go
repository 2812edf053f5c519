package db

import "strings"

// Usernames are case-insensitively unique. Every lookup and every stored key
// must go through this fold, never through an ad hoc ToLower at a call site
func NormalizeUsername(username string) string {
	return strings.ToLower(username)
}

func NormalizeUuid(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}
