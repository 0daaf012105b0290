// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package service

// HTTPMethod is the closed set of methods mapping rules are matched on.
// Methods outside the set compare as MethodOther and only match when the raw
// strings are also equal.
type HTTPMethod string

const (
	MethodGet     HTTPMethod = "GET"
	MethodHead    HTTPMethod = "HEAD"
	MethodPost    HTTPMethod = "POST"
	MethodPut     HTTPMethod = "PUT"
	MethodDelete  HTTPMethod = "DELETE"
	MethodPatch   HTTPMethod = "PATCH"
	MethodOptions HTTPMethod = "OPTIONS"
	MethodOther   HTTPMethod = "OTHER"
)

// ParseHTTPMethod maps a method string onto the known set. Methods are
// case-sensitive on the wire, so no folding is applied.
func ParseHTTPMethod(s string) HTTPMethod {
	switch HTTPMethod(s) {
	case MethodGet, MethodHead, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodOptions:
		return HTTPMethod(s)
	default:
		return MethodOther
	}
}

func methodEqual(a, b string) bool {
	ma, mb := ParseHTTPMethod(a), ParseHTTPMethod(b)
	if ma == MethodOther || mb == MethodOther {
		return a == b
	}
	return ma == mb
}

// MappingRule correlates an HTTP method and path with a metering counter
// increment. Rules are authored as part of a Service and are read-only at
// request time.
type MappingRule struct {
	Pattern          string `json:"pattern"`
	HTTPMethod       string `json:"http_method"`
	MetricSystemName string `json:"metric_system_name"`
	Delta            uint32 `json:"delta"`
}

// Matches reports whether the rule applies to the given request. Despite the
// field name, Pattern is compared by exact string equality, not as a pattern
// language.
func (r *MappingRule) Matches(method, path string) bool {
	if !methodEqual(r.HTTPMethod, method) {
		return false
	}
	return r.Pattern == path
}
