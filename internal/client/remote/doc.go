// Package remote talks to the notekeeper backend: note and attachment
// calls over gRPC and binary uploads to S3-compatible object storage.
//
// The backend exposes its note service with a JSON codec, so requests and
// replies are plain Go structs rather than generated protobuf messages.
package remote
