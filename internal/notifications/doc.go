// Package notifications delivers book generation milestones via ntfy.
//
// NewService returns a no-op implementation when no topic is configured.
// Per-event toggles in the [notifications] config section suppress outline,
// chapter and error messages individually. Workflow code depends only on the
// Service interface.
package notifications
