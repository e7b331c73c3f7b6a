package sync

import "strings"

// permanentMarkers are substrings in an upload error's message that mark
// a batch's failure as permanent for this sync — not worth retrying
// with backoff, since the server has already told us the request itself
// is wrong rather than transiently unavailable.
var permanentMarkers = []string{
	"unauthorized",
	"forbidden",
	"bad request",
	"not found",
	"conflict",
}

func isPermanent(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range permanentMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
