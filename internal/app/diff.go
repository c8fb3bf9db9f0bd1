package app

import (
	"reflect"

	"welcomebot/internal/config"
)

// changedSections names the top-level config sections that differ.
// Token values never appear in the result, only the "gateway" section name.
func changedSections(prev, next *config.Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var out []string
	add := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			out = append(out, name)
		}
	}
	add("gateway", prev.Gateway, next.Gateway)
	add("welcome", prev.Welcome, next.Welcome)
	add("messages", prev.Messages, next.Messages)
	add("router", prev.Router, next.Router)
	add("logging", prev.Logging, next.Logging)
	add("scheduler", prev.Scheduler, next.Scheduler)
	add("systemd", prev.Systemd, next.Systemd)
	return out
}
