// Package config loads gateway configuration from environment variables
// and an optional YAML collections file.
//
// Configuration is loaded once at startup and passed into component
// constructors as an immutable value; business logic never reads process
// state directly.
//
// # Environment Variables
//
//	CMSGATE_PORT              gateway listen port (default 8080)
//	CMSGATE_HEALTH_PORT       health/metrics port (default 9090)
//	CMSGATE_API_TOKEN         bearer token required from gateway callers
//	CMSGATE_UPSTREAM_URL      upstream CMS base URL
//	CMSGATE_UPSTREAM_TOKEN    upstream CMS credential
//	CMSGATE_SITE_ID           default site for site-wide scans
//	CMSGATE_COLLECTIONS_FILE  YAML file with the static collection set
//	CMSGATE_SMOKE_TARGETS     comma-separated smoke-test target preference
//	CMSGATE_AUDIT_SCHEDULE    cron expression for scheduled audits
//	CMSGATE_TRAIL_PATH        directory for the JSONL write trail
package config
