package proxy

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// Path is the single proxy endpoint.
	Path = "/api/proxy"

	// TargetParam is the query parameter carrying the target URL.
	TargetParam = "url"

	patternSegment = "/media/patterns/"
	patternSuffix  = "pattern.svg"
)

// allowedHosts is matched exactly: no subdomains, no case folding, no
// trailing-dot normalization.
var allowedHosts = map[string]struct{}{
	"www.braceletbook.com": {},
	"braceletbook.com":     {},
}

// ParseTarget parses raw as an absolute URL the way a browser would:
// surrounding C0 controls and spaces are trimmed, tabs and newlines are
// dropped, and dot segments ("." and "..", percent-encoded or not) are
// resolved. The returned URL is the one to validate, key and fetch.
func ParseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimFunc(raw, isC0OrSpace)
	raw = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, raw)

	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if !target.IsAbs() {
		return nil, fmt.Errorf("invalid URL %q: absolute URL required", raw)
	}
	if target.Opaque != "" {
		return target, nil
	}

	escaped := removeDotSegments(target.EscapedPath())
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, fmt.Errorf("invalid URL path %q: %w", escaped, err)
	}
	target.Path = decoded
	target.RawPath = escaped
	return target, nil
}

func isC0OrSpace(r rune) bool {
	return r <= ' '
}

// removeDotSegments resolves "." and ".." segments of an escaped absolute
// path. A dot segment in final position leaves a trailing slash.
func removeDotSegments(escaped string) string {
	if !strings.HasPrefix(escaped, "/") {
		return escaped
	}

	segments := strings.Split(escaped[1:], "/")
	out := make([]string, 0, len(segments))
	for i, seg := range segments {
		last := i == len(segments)-1
		switch {
		case isSingleDot(seg):
			if last {
				out = append(out, "")
			}
		case isDoubleDot(seg):
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
			if last {
				out = append(out, "")
			}
		default:
			out = append(out, seg)
		}
	}
	return "/" + strings.Join(out, "/")
}

func isSingleDot(seg string) bool {
	return seg == "." || strings.EqualFold(seg, "%2e")
}

func isDoubleDot(seg string) bool {
	switch strings.ToLower(seg) {
	case "..", ".%2e", "%2e.", "%2e%2e":
		return true
	}
	return false
}

// ValidateTarget checks target against the allow-list. Host is checked
// first, so a foreign host with a valid path reports HostNotAllowed.
func ValidateTarget(target *url.URL) error {
	if _, ok := allowedHosts[target.Hostname()]; !ok {
		return errHostNotAllowed
	}

	path := target.EscapedPath()
	if strings.Contains(target.Path, `\`) {
		return errPathNotAllowed
	}
	if !strings.Contains(path, patternSegment) || !strings.HasSuffix(path, patternSuffix) {
		return errPathNotAllowed
	}
	return nil
}
