// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

// Package logfields defines common logging fields which are used across packages
package logfields

const (
	// LogSubsys is the field denoting the subsystem when logging
	LogSubsys = "subsys"

	// ServiceID is the numeric identifier of a configured service
	ServiceID = "serviceID"

	// ResourceKey is the unique key of an exported proxy resource
	ResourceKey = "resourceKey"

	// ClusterName is the name of an upstream cluster resource
	ClusterName = "clusterName"

	// Issuer is an OpenID Connect issuer URL
	Issuer = "issuer"

	// URL is a generic URL field
	URL = "url"

	// Path is a filesystem path
	Path = "path"

	// ConfigPath is the path of the service configuration file
	ConfigPath = "configPath"

	// Version is the version of an xDS snapshot
	Version = "version"

	// NodeID is the xDS node identifier a snapshot is installed for
	NodeID = "nodeID"

	// Address is a listen or target address
	Address = "address"

	// HTTPMethod is the method of an HTTP request being matched
	HTTPMethod = "httpMethod"

	// HTTPPath is the path of an HTTP request being matched
	HTTPPath = "httpPath"
)
