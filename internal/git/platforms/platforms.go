// Package platforms provides a centralized registry for all Git platform
// client implementations. Importing it triggers each client's init()
// registration, so main only needs this one import to support every
// platform.
package platforms

import (
	// Import all client implementations to trigger their init() registration
	_ "github.com/reviewflow/reviewflow/internal/git/gitea"
	_ "github.com/reviewflow/reviewflow/internal/git/github"
	_ "github.com/reviewflow/reviewflow/internal/git/gitlab"
)
