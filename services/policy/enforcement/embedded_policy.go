// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
This file bridges the build system and the runtime routing logic. It uses the
Go embed package to bake routing_policy.yaml directly into the compiled
binary, so the routing rules are immutable at runtime and travel with the
executable.
*/

package enforcement

import (
	_ "embed"
)

// RoutingPolicy holds the raw byte content of the 'routing_policy.yaml' file.
//
// Populated at compile-time via the Go 'embed' directive. Baking the YAML
// into the binary means the cost-routing rules cannot be tampered with on
// the host filesystem without recompiling.
//
// Usage:
//
//	err := yaml.Unmarshal(enforcement.RoutingPolicy, &targetStruct)
//
//go:embed routing_policy.yaml
var RoutingPolicy []byte
