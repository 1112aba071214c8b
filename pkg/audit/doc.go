// Package audit inventories CMS collections, detects structural defects,
// proposes corrective patches, and rehearses the write path.
//
// # Overview
//
// An audit run gathers collections (site-wide discovery or the static
// configured set), fetches every item of each collection sequentially,
// and classifies items in a single scan: missing slugs, missing names,
// draft/archived counts, and duplicate-slug groups. A second pass turns
// findings into ready-to-apply patch suggestions that are reported but
// never sent.
//
// A run can end with a smoke test: a scripted create, update, optional
// publish, delete sequence against one target collection that verifies
// write-path health end to end. The smoke test cleans up after itself;
// when a stage fails before the delete, the stray item's identifier is
// reported so an operator can remove it.
//
// All state lives inside one Run invocation. Nothing is cached across
// runs and nothing survives the report.
//
// # Related Packages
//
//   - pkg/upstream: the negotiated CMS client the engine drives
//   - pkg/api: exposes audit runs over HTTP
package audit
