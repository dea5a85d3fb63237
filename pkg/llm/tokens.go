// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package llm

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates token counts for prompt text. Claude does not
// publish a local tokenizer, so cl100k_base is used as a close proxy;
// estimates feed compaction thresholds, not billing.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter backed by the cl100k_base encoding.
func NewTokenCounter() (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load token encoding: %w", err)
	}
	return &TokenCounter{encoding: encoding}, nil
}

// Count returns the estimated token count of text.
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.encoding == nil {
		// Rough fallback when the encoding is unavailable.
		return len(text) / 4
	}
	return len(c.encoding.Encode(text, nil, nil))
}
