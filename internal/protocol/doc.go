// Package protocol decodes collectd binary network datagrams into metric
// sample records.
//
// Ownership boundary:
// - part framing lives in protocol/part
// - type definitions live in protocol/typesdb
// - this package owns the per-datagram decode context and value blocks
package protocol
