// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package observer

import (
	"fmt"

	"github.com/teradata-labs/hamlet/pkg/domain"
)

// AgentNotFoundError reports a command against an agent that does not
// exist in the village.
type AgentNotFoundError struct {
	Agent domain.AgentName
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("unknown agent %q", e.Agent)
}

// InvalidLocationError reports a destination that is not part of the
// village map.
type InvalidLocationError struct {
	Location domain.LocationID
}

func (e *InvalidLocationError) Error() string {
	return fmt.Sprintf("invalid location %q", e.Location)
}

// InvalidWeatherError reports a weather value outside the known set.
type InvalidWeatherError struct {
	Weather domain.Weather
}

func (e *InvalidWeatherError) Error() string {
	return fmt.Sprintf("invalid weather %q", e.Weather)
}

// ConversationError reports a failed conversation operation.
type ConversationError struct {
	ConversationID domain.ConversationID
	Reason         string
}

func (e *ConversationError) Error() string {
	if e.ConversationID == "" {
		return e.Reason
	}
	return fmt.Sprintf("conversation %q: %s", e.ConversationID, e.Reason)
}
