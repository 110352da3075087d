package ui

import (
	"fmt"
	"io"
	"os"
)

// Out is where the Print helpers write
var Out io.Writer = os.Stdout

// Logo is the banner printed by the serve command
const Logo = `
 ┳┏┓  ┏┓┳┓┏┓┓┏┳┓┏┓
 ┃┃┓━━┣┫┣┫┃ ┣┫┃┃┃┣
 ┻┗┛  ┛┗┛┗┗┛┛┗┻┗┛┗┛`

// PrintLogo prints the banner
func PrintLogo() {
	fmt.Fprintln(Out, logoStyle.Render(Logo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	fmt.Fprintln(Out, errorStyle.Render("✗ "+msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(Out, successStyle.Render("✓ "+msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(Out, "%s: %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

// PrintWarning prints a warning message in orange
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	fmt.Fprintln(Out, warningStyle.Render("⚠ "+msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(Out, titleStyle.Render(msg))
}

// Print writes pre-rendered text followed by a newline
func Print(s string) {
	fmt.Fprintln(Out, s)
}
