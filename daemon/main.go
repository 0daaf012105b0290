// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of gateway-ng-controller

package main

import (
	"github.com/3scale-labs/gateway-ng-controller/daemon/cmd"
)

func main() {
	cmd.Execute()
}
