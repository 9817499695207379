package session

import "strings"

// ResolveAvatarURL makes a stored profile picture path absolute. Values that
// already start with "http" pass through; empty stays empty.
func ResolveAvatarURL(base, raw string) string {
	if raw == "" || strings.HasPrefix(raw, "http") {
		return raw
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(raw, "/")
}
