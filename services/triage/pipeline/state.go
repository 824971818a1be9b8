// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import "github.com/kodiakai/kodiak/services/triage/datatypes"

// Stage identifies one step of the triage pipeline.
type Stage string

const (
	// StageIntent classifies the query and applies the routing policy.
	// Always the entry stage; runs exactly once per request.
	StageIntent Stage = "intent"

	// StageRetrieve fetches grounding documents. Reached only for BUCKET_B.
	StageRetrieve Stage = "retrieve"

	// StageGenerate produces the final response via the bucket's backend.
	StageGenerate Stage = "generate"

	// StageDone is the terminal state; the context is returned unchanged.
	StageDone Stage = "done"
)

// NextStage is the pipeline's transition function.
//
// The only conditional edge sits after the intent stage and depends on the
// bucket alone: BUCKET_B passes through retrieval, everything else goes
// straight to generation. Keeping this a pure function of (stage, bucket)
// is deliberate -- it can be tested exhaustively without running any stage.
func NextStage(current Stage, bucket datatypes.Bucket) Stage {
	switch current {
	case StageIntent:
		if bucket == datatypes.BucketB {
			return StageRetrieve
		}
		return StageGenerate
	case StageRetrieve:
		return StageGenerate
	case StageGenerate:
		return StageDone
	default:
		return StageDone
	}
}
