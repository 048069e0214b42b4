package ingestion

import (
	"net/url"
	"regexp"
	"strings"
)

// InferredMetadata holds the site, docs version, section and doc type
// inferred from a documentation URL's structure. Explicit source metadata
// takes precedence over inferred values.
type InferredMetadata struct {
	// Site is a short label for the documentation site (e.g. "langchain").
	Site string
	// Version is the docs version segment when the URL carries one (e.g. "v0.1").
	Version string
	// Section is the path below the docs root (e.g. "modules/agents").
	Section string
	// DocType classifies the documentation kind (reference, tutorial, guide, api).
	DocType string
}

// siteAliases maps documentation hostnames to a canonical short label.
var siteAliases = map[string]string{
	"python.langchain.com":     "langchain",
	"js.langchain.com":         "langchainjs",
	"docs.langchain.com":       "langchain",
	"docs.smith.langchain.com": "langsmith",
	"langchain-ai.github.io":   "langgraph",
	"pkg.go.dev":               "go",
	"go.dev":                   "go",
	"docs.python.org":          "python",
}

// hostPrefixes are stripped from unknown hostnames before taking the label.
var hostPrefixes = []string{"www.", "docs.", "python.", "developer."}

var versionSegment = regexp.MustCompile(`^v\d+(\.\d+)*$`)

// InferMetadata inspects the documentation source URL and returns best-effort
// metadata. If the URL doesn't match any known pattern the Site is derived
// from the hostname and DocType defaults to "reference".
//
// Recognised path shapes:
//
//	{host}/{version}/docs/{section...}
//	{host}/docs/{section...}
//	{host}/{version}/{section...}
func InferMetadata(rawURL string) InferredMetadata {
	m := InferredMetadata{DocType: "reference"}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		m.Site = "generic"
		return m
	}

	host := strings.ToLower(parsed.Hostname())
	m.Site = siteLabel(host)

	segments := trimSegments(strings.ToLower(parsed.Path))
	if len(segments) > 0 && (versionSegment.MatchString(segments[0]) || segments[0] == "latest" || segments[0] == "stable") {
		m.Version = segments[0]
		segments = segments[1:]
	}
	if len(segments) > 0 && segments[0] == "docs" {
		segments = segments[1:]
	}
	m.Section = strings.Join(segments, "/")
	m.DocType = inferDocType(segments)

	return m
}

// siteLabel returns the alias for host, or its first meaningful label.
func siteLabel(host string) string {
	if alias, ok := siteAliases[host]; ok {
		return alias
	}
	for _, p := range hostPrefixes {
		host = strings.TrimPrefix(host, p)
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

// inferDocType classifies a page by the first path segment that names a
// documentation kind.
func inferDocType(segments []string) string {
	for _, seg := range segments {
		switch seg {
		case "tutorials", "tutorial", "quickstart", "quick-start", "get_started", "getting-started":
			return "tutorial"
		case "how_to", "how-to", "guides", "guide":
			return "guide"
		case "api", "api_reference", "api-reference":
			return "api"
		}
	}
	return "reference"
}

// trimSegments splits a URL path into non-empty segments.
func trimSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
