// Package ui renders terminal feedback: a progress bar for resource
// downloads and colored error diagnostics.
package ui
