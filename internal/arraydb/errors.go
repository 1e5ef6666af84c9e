package arraydb

import "strings"

// connectionErrorMarkers are substrings of backend error text that indicate
// the connection itself is unusable and the owning session must be
// invalidated. These are the backend's own literal error codes; they are
// matched verbatim rather than parsed, mirroring how the wire protocol
// reports them as free-form text embedded in the error message.
var connectionErrorMarkers = []string{
	"SCIDB_LE_CANT_SEND_RECEIVE",
	"SCIDB_LE_CONNECTION_ERROR",
	"SCIDB_LE_NO_QUORUM",
}

// IsConnectionError reports whether err's text contains one of the known
// fatal connection-error markers. A true result means the session that
// produced err must be invalidated (HTTP 502); false means the error is a
// query-level failure that leaves the session usable (HTTP 406).
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range connectionErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
