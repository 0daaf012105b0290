// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHTTPMethod(t *testing.T) {
	assert.Equal(t, MethodGet, ParseHTTPMethod("GET"))
	assert.Equal(t, MethodDelete, ParseHTTPMethod("DELETE"))

	// No case folding: methods are case-sensitive on the wire.
	assert.Equal(t, MethodOther, ParseHTTPMethod("get"))
	assert.Equal(t, MethodOther, ParseHTTPMethod("PROPFIND"))
	assert.Equal(t, MethodOther, ParseHTTPMethod(""))
}

func TestMappingRuleMatches(t *testing.T) {
	rule := MappingRule{
		Pattern:          "/widgets",
		HTTPMethod:       "GET",
		MetricSystemName: "hits",
		Delta:            1,
	}

	assert.True(t, rule.Matches("GET", "/widgets"))
	assert.False(t, rule.Matches("POST", "/widgets"))
	assert.False(t, rule.Matches("GET", "/widgets/1"))
	assert.False(t, rule.Matches("GET", "/widget"))
}

func TestMappingRuleMatchesUnknownMethod(t *testing.T) {
	rule := MappingRule{Pattern: "/sync", HTTPMethod: "PROPFIND"}

	// Methods outside the known set fall back to raw string comparison
	// rather than all comparing equal through the Other case.
	assert.True(t, rule.Matches("PROPFIND", "/sync"))
	assert.False(t, rule.Matches("MKCOL", "/sync"))
}
