// Package config loads adaptive limiter policies from YAML files and
// keeps live limiters in sync with them.
//
// # Policy Files
//
// A policy file carries a base policy block and, optionally, named
// windows that override it on a cron schedule:
//
//	policy:
//	  fill_rate: 8.0
//	  normal_capacity: 100
//	  burst_capacity: 120
//	  low_threshold: 30
//	  protection_threshold: 75
//	  max_protected_request: 2
//	  refill_interval: 500ms
//	  stressed_refill_interval: 200ms
//
//	windows:
//	  - name: business-hours
//	    cron: "0 9 * * 1-5"
//	    policy:
//	      fill_rate: 16.0
//	  - name: overnight
//	    cron: "0 19 * * 1-5"
//	    policy:
//	      fill_rate: 4.0
//
// Fields omitted from a policy block inherit the library defaults, and
// a window's policy block inherits from the file's base policy, so each
// block only names what it changes. Durations are strings in Go's
// time.ParseDuration syntax.
//
// # Hot Reload
//
//	file, err := config.Load("policy.yaml")
//	// apply file.Policy() to a limiter, then keep it current:
//	watcher, err := config.NewWatcher(limiter, config.WatcherConfig{Path: "policy.yaml"}, nil)
//	go watcher.Watch(ctx)
//	defer watcher.Stop()
//
// Edits to the file are debounced, validated, and applied with
// SetPolicy. A file that fails to parse or validate is logged and
// skipped; the limiter keeps its last good policy.
//
// # Scheduled Windows
//
//	schedule, err := config.NewSchedule(limiter, file, nil)
//	if err := schedule.Start(); err != nil { ... }
//	defer schedule.Stop()
//
// Each window's policy is applied at its cron times. Stop waits for an
// in-flight apply to finish.
package config
