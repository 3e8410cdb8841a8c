// Command reportforge renders security assessment reports into Word,
// PowerPoint, Excel and JSON documents, and lints report templates.
package main

import (
	"fmt"
	"os"

	"github.com/waftester/reportforge/pkg/cli"
	"github.com/waftester/reportforge/pkg/defaults"
	"github.com/waftester/reportforge/pkg/ui"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(defaults.ExitUserError)
	}

	args := os.Args[2:]
	switch cli.Command(os.Args[1]) {
	case cli.CommandGenerate:
		os.Exit(runGenerate(args))
	case cli.CommandLint:
		os.Exit(runLint(args))
	case cli.CommandVersion:
		printVersion()
	default:
		switch os.Args[1] {
		case "-h", "--help", "help":
			printUsage()
		case "-v", "--version":
			printVersion()
		default:
			exitWithUsage(defaults.ExitUserError, fmt.Sprintf("unknown command %q", os.Args[1]), defaults.ToolName+" <generate|lint|version> [flags]")
		}
	}
}

func printVersion() {
	fmt.Printf("%s %s (commit %s, built %s)\n", defaults.ToolName, ui.Version, ui.Commit, ui.BuildDate)
}

func printUsage() {
	ui.PrintBanner()
	fmt.Fprintf(os.Stderr, `Usage:
  %[1]s generate -data report.json [-format docx,pptx,xlsx,json] [flags]
  %[1]s lint -template template.docx [-format docx] [flags]
  %[1]s version

Commands:
  generate   Render the report data into one or more documents
  lint       Check a template against placeholder data
  version    Print version information

Run '%[1]s <command> -h' for the flags of a command.
`, defaults.ToolName)
}
