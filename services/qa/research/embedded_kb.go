// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
This file bridges the build system and the runtime logic. The Go embed
package bakes journals.yaml directly into the compiled binary, so the
research source knowledge base is immutable at runtime and travels with
the executable.
*/

package research

import (
	_ "embed"
)

// JournalsYAML holds the raw byte content of journals.yaml.
//
// Populated at compile time via the embed directive. Pass these bytes
// directly to yaml.Unmarshal when constructing a Validator.
//
//go:embed journals.yaml
var JournalsYAML []byte
