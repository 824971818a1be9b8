// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kodiakai/kodiak/services/policy"
)

// ListIntents exposes the intent inventory: every routable intent, its
// bucket, and per-bucket counts. Operators use this to sanity-check the
// policy table a running instance actually loaded.
func ListIntents(table *policy.Table) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, table.Summarize())
	}
}
