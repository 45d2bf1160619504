// Package storage persists the delivery log and campaign history.
//
// Drivers:
//   - file: one JSON array document holding every delivery entry, plus
//     <prefix>.campaigns.json for per-run summaries
//   - sqlite: deliveries and campaigns tables in a single database file
//   - none: discards writes, reports empty stats
//
// Writes are serialized per store; a campaign has a single writer.
package storage
