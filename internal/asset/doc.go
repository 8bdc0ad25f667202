// Package asset provides the inventory record model and the conversions
// between spreadsheet rows, in-memory records, and per-asset YAML files.
//
// This package holds all domain logic and has no CLI or transport
// dependencies. The cmd/inventory binary, the HTTP API, and the PostgreSQL
// importer are thin layers on top of it.
//
// # Records
//
// A [Record] describes one physical asset, grouped into five categories
// (acquisition, hardware, condo_chassis, location, tags). Every leaf is a
// [Value]: a text value, a boolean flag, or explicitly absent. Absent values
// are rendered as the quoted literal "MISSING" only when a record is encoded;
// inside the program they never look like data.
//
// # Mapping rows
//
// A [Layout] binds (category, field) pairs to column indices. The
// [ReferenceLayout] describes the facility's 13-column spreadsheet:
//
//	room, rack, elevation, hostname, domain, model, serial_number,
//	identifier, service_tag, uw, csl, morgridge, notes
//
// A [Mapper] turns one row into a fully populated record and derives the
// purchase order and fabrication flag from the notes cell:
//
//	m, err := asset.NewMapper(asset.ReferenceLayout())
//	rec, err := m.Map(2, row)
//
// # Files
//
// Records are stored one file per asset, named <hostname>.<domain>.yaml.
// [Writer] writes them atomically; [Loader] reads a directory back into
// memory and reports files it could not parse alongside the ones it could.
//
// # Error Handling
//
// Structural problems are returned as errors that match the sentinels in
// errors.go via errors.Is. [MapError] turns any of them into a short
// user-facing message with a support code.
package asset
