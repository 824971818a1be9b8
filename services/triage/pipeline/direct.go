// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"github.com/kodiakai/kodiak/services/policy"
)

// fallbackDirectAnswer is returned when a BUCKET_A intent has no canned
// answer in the policy table. The table loader rejects such rules at
// startup, so reaching this string indicates a stale table and is worth
// seeing in transcripts.
const fallbackDirectAnswer = "Thanks for reaching out. A support agent will follow up with the details shortly."

// DirectResponder answers BUCKET_A requests straight from the policy
// table, with no model call. This is the zero-cost tier.
type DirectResponder struct {
	table *policy.Table
}

// NewDirectResponder builds a DirectResponder over the routing policy.
func NewDirectResponder(table *policy.Table) *DirectResponder {
	return &DirectResponder{table: table}
}

// Respond returns the canned answer for the intent.
func (d *DirectResponder) Respond(intent string) string {
	if answer, ok := d.table.DirectAnswer(intent); ok {
		return answer
	}
	return fallbackDirectAnswer
}
