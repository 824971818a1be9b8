// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"fmt"
	"strings"

	"github.com/kodiakai/kodiak/services/triage/datatypes"
)

// FormatContext builds the grounding block injected into the economical
// model's prompt. Each document is labelled so the model can cite which
// reference it used. Returns "" for an empty document set.
func FormatContext(docs []datatypes.Document) string {
	if len(docs) == 0 {
		return ""
	}

	var b strings.Builder
	for i, doc := range docs {
		source := doc.Id
		if intent, ok := doc.Metadata["intent"].(string); ok && intent != "" {
			source = fmt.Sprintf("%s, %s", doc.Id, intent)
		}
		fmt.Fprintf(&b, "[Document %d: %s]\n%s", i+1, source, strings.TrimSpace(doc.Text))
		if i < len(docs)-1 {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}
