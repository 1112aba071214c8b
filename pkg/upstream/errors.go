package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
)

// ConfigurationError means a required credential or identifier was never
// configured. It is raised before any network call is attempted.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Field)
}

// ValidationError means caller-supplied input failed a precondition. No
// upstream call is attempted.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UpstreamError is a non-success response from the upstream CMS. Name is
// the upstream's own error name when its envelope carried one; Message is
// the extracted human message; Details keeps the request path, parsed
// response body, and status for diagnosis.
type UpstreamError struct {
	Status  int
	Name    string
	Message string
	Details map[string]any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Status, e.Message)
}

// newUpstreamError builds an UpstreamError from a parsed error body. The
// human message is taken from the first of the envelope's "err", "message"
// or "msg" fields, falling back to a generic templated message.
func newUpstreamError(status int, method, path string, body any) *UpstreamError {
	e := &UpstreamError{
		Status:  status,
		Message: fmt.Sprintf("upstream request failed: %s %s (status %d)", method, path, status),
		Details: map[string]any{
			"path":     path,
			"status":   status,
			"response": body,
		},
	}
	envelope, ok := body.(map[string]any)
	if !ok {
		return e
	}
	if name, ok := envelope["name"].(string); ok {
		e.Name = name
	}
	for _, key := range []string{"err", "message", "msg"} {
		if msg, ok := envelope[key].(string); ok && msg != "" {
			e.Message = msg
			break
		}
	}
	return e
}

// FailureClass is the closed set of fallback-relevant failure kinds. The
// dispatcher, writer and resolver consult Classify instead of matching
// error strings inline, so the retry rules stay independently testable.
type FailureClass int

const (
	// FailureOther is any failure no fallback rule applies to.
	FailureOther FailureClass = iota
	// FailureVersionMismatch is a 400 rejecting the protocol generation.
	FailureVersionMismatch
	// FailureShapeMismatch is a 400 demanding the alternate field
	// container on a write.
	FailureShapeMismatch
)

func (c FailureClass) String() string {
	switch c {
	case FailureVersionMismatch:
		return "version_mismatch"
	case FailureShapeMismatch:
		return "shape_mismatch"
	default:
		return "other"
	}
}

// unsupportedVersionName is the exact error name the upstream uses when it
// rejects an Accept-Version tag.
const unsupportedVersionName = "UnsupportedVersion"

var (
	// Matches messages stating the supported version range is, or
	// includes, the legacy generation.
	versionRangeRe = regexp.MustCompile(`(?i)versions?\b.*` + regexp.QuoteMeta(string(GenerationLegacy)))
	// Matches "required" messages naming the alternate container key.
	alternateShapeRe = regexp.MustCompile(`(?i)['"]?` + ContainerAlternate + `['"]?\s+(?:is\s+|are\s+|field\s+is\s+)?required`)
)

// Classify maps an error onto a FailureClass. Only 400 responses are
// fallback-eligible; every other status, and every non-UpstreamError, is
// FailureOther.
func Classify(err error) FailureClass {
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusBadRequest {
		return FailureOther
	}
	if ue.Name == unsupportedVersionName || versionRangeRe.MatchString(ue.Message) {
		return FailureVersionMismatch
	}
	if alternateShapeRe.MatchString(ue.Message) {
		return FailureShapeMismatch
	}
	return FailureOther
}
