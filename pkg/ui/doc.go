// Package ui renders CLI output: styled messages, run progress, outcome
// and stats panels, and optional desktop notifications.
package ui
