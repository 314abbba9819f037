// Package providers provides a centralized registry for all AI provider
// implementations. Importing it triggers each provider's init()
// registration.
package providers

import (
	// Import all provider implementations to trigger their init() registration
	_ "github.com/reviewflow/reviewflow/internal/ai/anthropic"
	_ "github.com/reviewflow/reviewflow/internal/ai/mock"
)
