// Copyright (C) 2025 Kodiak AI (oss@kodiak-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
package policy

import (
	"fmt"

	"github.com/kodiakai/kodiak/services/triage/datatypes"
	"gopkg.in/yaml.v3"
)

// RoutingPolicyFile is the on-disk shape of the routing policy.
type RoutingPolicyFile struct {
	Buckets map[string]BucketInfo `yaml:"buckets"`
	Rules   []Rule                `yaml:"rules"`
}

// BucketInfo describes a bucket for operators (surfaced by /v1/intents).
type BucketInfo struct {
	Description string `yaml:"description"`
}

// Rule maps one intent category to its primary bucket.
//
// DirectAnswer is only meaningful for BUCKET_A rules: it is the canned
// response returned without any model call.
type Rule struct {
	Intent       string           `yaml:"intent"`
	Bucket       datatypes.Bucket `yaml:"bucket"`
	Description  string           `yaml:"description"`
	DirectAnswer string           `yaml:"direct_answer,omitempty"`
}

// UnmarshalYAML validates the bucket value while decoding so that a typo in
// the policy file fails at startup, not at routing time.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	type rawRule Rule
	var raw rawRule
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Intent == "" {
		return fmt.Errorf("routing rule with empty intent")
	}
	if !raw.Bucket.Valid() {
		return fmt.Errorf("routing rule %q has invalid bucket %q", raw.Intent, raw.Bucket)
	}
	*r = Rule(raw)
	return nil
}
