package common

// AccessTokenHeaderName is the gRPC metadata key carrying the session token
// on outbound calls to the note store.
const AccessTokenHeaderName = "access_token"

// Metadata keys persisted in the local store.
const (
	MetadataSessionToken = "session_token"
	MetadataLastSyncAt   = "last_sync_at"
)
