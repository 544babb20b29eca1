// Package internal contains helper utilities that are intentionally private
// to sesstore: secure session identifier generation and the per-key lock
// table the store serializes record mutations through.
//
// # What this package must NOT do
//
//   - Export types that appear in the public sesstore API.
//   - Be imported by any package outside the sesstore module.
package internal
