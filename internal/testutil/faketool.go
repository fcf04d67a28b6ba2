package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FakeToolEnv switches a test binary into fake build tool mode.
const FakeToolEnv = "DOCHARNESS_FAKE_TOOL"

// FakeTool returns the command and environment that make the running test
// binary behave like a build tool hosting the phpdocumentor plugin.
//
// The test package must call RunFakeToolIfRequested from TestMain.
func FakeTool() (command []string, env []string) {
	return []string{os.Args[0]}, []string{FakeToolEnv + "=1"}
}

// RunFakeToolIfRequested turns the process into the fake build tool when
// FakeToolEnv is set, and exits. Otherwise it returns immediately.
//
// It must run before flag parsing: the fake tool receives build tool
// arguments (e.g. "phpdocumentor:testForList --no-color") that the testing
// package would reject.
func RunFakeToolIfRequested() {
	if os.Getenv(FakeToolEnv) != "1" {
		return
	}
	os.Exit(fakeTool(os.Args[1:]))
}

const (
	listOutput = `phpDocumentor version v2.0.0

Usage:
  [options] command [arguments]

Available commands:
  help                Displays help for a command
  list                Lists commands
  parse               Creates a structure file from your source code
  run                 Parses and transforms the given files to a specified location
  transform           Converts the PHPDocumentor structure file to documentation
project
  project:parse       Creates a structure file from your source code
  project:run         Parses and transforms the given files to a specified location
  project:transform   Converts the PHPDocumentor structure file to documentation
template
  template:list       Displays a listing of all available templates in phpDocumentor
`
	parseOutput = `Collecting files .. OK
Initializing parser .. OK
Parsing files
Parsing /src/Example.php
`
	templateOutput = `Available templates:
* abstract
* checkstyle
* new-black
* old-ocean
* responsive
* responsive-twig
* xml
* zend
`
	helpOutput = `Usage:
 help [--xml] [--format="..."] [--raw] [command_name]

Arguments:
 command               The command name (default: "help")
`
)

func fakeTool(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Warning: no task specified")
		return 3
	}

	task := args[0]
	name := task
	if i := strings.IndexByte(task, ':'); i >= 0 {
		name = task[i+1:]
	}

	colored := true
	for _, a := range args[1:] {
		if a == "--no-color" {
			colored = false
		}
	}

	header := fmt.Sprintf("Running %q (phpdocumentor) task\n", task)
	if colored {
		header = "\x1b[4m" + header + "\x1b[24m"
	}
	fmt.Print(header)

	switch name {
	case "testForList":
		fmt.Print(listOutput)
	case "testForParse", "testForProjectParse":
		fmt.Print(parseOutput)
	case "testForTemplateList":
		fmt.Print(templateOutput)
	case "testWithTaskOptionsOverwriting":
		fmt.Print(helpOutput)
	case "testWithDefaultOptions":
		if err := os.MkdirAll("docs", 0755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(parseOutput)
	case "testForProjectRun", "testWithCustomPharFile", "testWithNullPhar", "testWithTarget":
		if err := os.MkdirAll(filepath.Join("target", name), 0755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(parseOutput)
	case "echoArgs":
		fmt.Println(strings.Join(args, " "))
	case "fails":
		fmt.Println(">> phpDocumentor exited with code 255")
		fmt.Fprintln(os.Stderr, "PHP Fatal error: Class 'Foo' not found")
		fmt.Println("Warning: Task \"phpdocumentor:fails\" failed. Use --force to continue.")
		return 6
	case "hangs":
		fmt.Println("Parsing files")
		time.Sleep(time.Minute)
	case "stderrOnly":
		fmt.Fprintln(os.Stderr, "deprecated option \"phar\"")
	default:
		fmt.Printf("Warning: Task %q not found.\n", task)
		return 3
	}

	fmt.Println()
	fmt.Println("Done, without errors.")
	return 0
}
