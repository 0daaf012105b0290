// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const serviceJSON = `{
  "id": 42,
  "hosts": ["widgets.example.com"],
  "policies": [],
  "target_domain": "web",
  "proxy_rules": [
    {"pattern": "/widgets", "http_method": "GET", "metric_system_name": "hits", "delta": 1},
    {"pattern": "/widgets", "http_method": "GET", "metric_system_name": "widget_reads", "delta": 2},
    {"pattern": "/admin", "http_method": "DELETE", "metric_system_name": "hits", "delta": 10}
  ]
}`

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine := NewEngine()
	_, err := engine.Import([]byte(serviceJSON))
	require.NoError(t, err)
	return engine
}

func TestImport(t *testing.T) {
	engine := NewEngine()

	svc, err := engine.Import([]byte(serviceJSON))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), svc.ID)
	assert.Len(t, svc.ProxyRules, 3)
	assert.Equal(t, svc, engine.Config())
}

func TestImportInvalidConfigKeepsPrevious(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Import([]byte(`{"id": not json`))
	require.Error(t, err)

	// The previous configuration stays active.
	matched, metrics := engine.Match("GET", "/widgets")
	assert.True(t, matched)
	assert.NotEqual(t, "{}", metrics)
}

func TestImportWhileUpdateInProgress(t *testing.T) {
	engine := newTestEngine(t)

	engine.mu.Lock()
	_, err := engine.Import([]byte(`{
	  "id": 7,
	  "hosts": [],
	  "policies": [],
	  "target_domain": "web",
	  "proxy_rules": []
	}`))
	engine.mu.Unlock()

	// Imports do not block on a held guard; they report failure and leave
	// the active configuration untouched.
	require.ErrorIs(t, err, ErrUpdateInProgress)

	assert.Equal(t, uint32(42), engine.Config().ID)
	matched, _ := engine.Match("GET", "/widgets")
	assert.True(t, matched)
}

func TestMatch(t *testing.T) {
	engine := newTestEngine(t)

	matched, metrics := engine.Match("GET", "/widgets")
	assert.True(t, matched)

	var decoded map[string]uint32
	require.NoError(t, json.Unmarshal([]byte(metrics), &decoded))
	assert.Equal(t, map[string]uint32{"hits": 1, "widget_reads": 2}, decoded)
}

func TestMatchMethodMismatch(t *testing.T) {
	engine := newTestEngine(t)

	matched, metrics := engine.Match("POST", "/widgets")
	assert.False(t, matched)
	assert.Equal(t, "{}", metrics)
}

func TestMatchNoRules(t *testing.T) {
	engine := NewEngine()

	matched, metrics := engine.Match("GET", "/widgets")
	assert.False(t, matched)
	assert.Equal(t, "{}", metrics)
}

func TestMatchSameMetricLastRuleWins(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Import([]byte(`{
	  "id": 1,
	  "hosts": [],
	  "policies": [],
	  "target_domain": "web",
	  "proxy_rules": [
	    {"pattern": "/sum", "http_method": "GET", "metric_system_name": "hits", "delta": 1},
	    {"pattern": "/sum", "http_method": "GET", "metric_system_name": "hits", "delta": 5}
	  ]
	}`))
	require.NoError(t, err)

	// Overlapping rules on the same metric do not sum: the later rule
	// overwrites the earlier delta.
	matched, metrics := engine.Match("GET", "/sum")
	assert.True(t, matched)

	var decoded map[string]uint32
	require.NoError(t, json.Unmarshal([]byte(metrics), &decoded))
	assert.Equal(t, map[string]uint32{"hits": 5}, decoded)
}

func TestImportReplacesWholesale(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Import([]byte(`{
	  "id": 7,
	  "hosts": [],
	  "policies": [],
	  "target_domain": "web",
	  "proxy_rules": [
	    {"pattern": "/other", "http_method": "GET", "metric_system_name": "other", "delta": 1}
	  ]
	}`))
	require.NoError(t, err)

	matched, _ := engine.Match("GET", "/widgets")
	assert.False(t, matched)

	matched, _ = engine.Match("GET", "/other")
	assert.True(t, matched)
}
