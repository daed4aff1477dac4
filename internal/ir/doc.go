// Package ir holds the wire representation used between rfsync clients and
// the request processor.
//
// All other internal packages may import ir; ir imports nothing internal.
// It contains:
//   - the sealed IRValue family used for encoded property values and arguments
//   - RFC 8785 canonical JSON, used wherever two encodings must compare equal
//     byte-for-byte (flattened ids and versions)
//   - request, response, id, operation, violation and failure messages
//
// All JSON tags use snake_case.
package ir
