// Package metrics implements the popup analytics engine: recording
// interaction events from anonymous visitors, resolving unique/repeat
// visitor status, querying and aggregating recorded events, and
// correlating visitor timelines with form submissions for export.
//
// The service layer contains all business logic and depends only on the
// repository interfaces defined in this package; it should never import
// from api/. Repository implementations live in repository/postgres/,
// repository/dynamo/, and repository/memory/.
package metrics
