// Package upstream is the version-negotiating client for the headless CMS.
//
// # Overview
//
// The upstream CMS exposes two incompatible API generations selected by an
// Accept-Version header, and two incompatible write-payload shapes selected
// by the field-container key. This package hides both:
//
//   - Client issues a single HTTP call with an explicit generation tag.
//   - Dispatcher retries a primary-generation call once against the legacy
//     generation when the upstream rejects the version.
//   - Writer retries a create/update once under the alternate container key
//     when the upstream demands it, and reports which shape stuck.
//   - Lister pages through a collection's items with a hard page cap.
//   - Resolver discovers a site's collections with a query-parameter
//     fallback for upstreams that lack the nested discovery route.
//   - Publisher publishes items, falling back to the legacy "go live"
//     payload.
//
// Fallback decisions go through Classify, which maps an error to a closed
// set of failure classes instead of string-matching inline.
//
// # Related Packages
//
//   - pkg/audit: drives this package to inventory and smoke-test content
//   - pkg/api: exposes the negotiated operations over HTTP
package upstream
