// Package cron parses standard 5-field cron expressions and turns them
// into coordinator-managed workers that run a job on schedule and stop
// cleanly on cancellation.
package cron
