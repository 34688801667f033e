package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	errorLabel = color.New(color.FgRed, color.Bold)
	warnLabel  = color.New(color.FgYellow)
)

// PrintError writes err to w as a red "Error:" diagnostic.
func PrintError(w io.Writer, err error) {
	errorLabel.Fprint(w, "Error:")
	fmt.Fprintf(w, " %v\n", err)
}

// PrintWarning writes a yellow warning line to w.
func PrintWarning(w io.Writer, format string, args ...any) {
	warnLabel.Fprint(w, "Warning:")
	fmt.Fprintf(w, " "+format+"\n", args...)
}
