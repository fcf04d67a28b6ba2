// Package harness runs black-box scenarios against a build-tool plugin.
//
// A scenario names one task configuration of the plugin. The harness spawns
// the build tool as
//
//	<tool> <plugin>:<scenario> --no-color
//
// waits for it, and evaluates the scenario's checks against the exit code,
// captured stdout and stderr, and the filesystem.
//
// # Suite Format
//
// Suites are YAML (or CUE) files with the following structure:
//
//	name: phpdocumentor
//	plugin: phpdocumentor
//	match: positive-offset
//	timeout: 5m
//	tool:
//	  command: [grunt]
//	scenarios:
//	  - name: testForParse
//	    expect: 3
//	    stdout_contains:
//	      - "Collecting files .. OK"
//	      - "Initializing parser .. OK"
//	      - "Parsing files"
//	  - name: testWithTarget
//	    expected_directory: target/testWithTarget
//	    assertions:
//	      - type: expr
//	        expr: 'exit_code == 0 && !stdout.contains("Warning")'
//
// # Checks
//
// A scenario expands into an ordered list of checks:
//
//   - expected_directory: absent before the run and present after it
//   - stdout_contains: every fragment must appear in stdout
//   - assertions: stdout_contains, stdout_not_contains, stderr_contains,
//     dir_exists, dir_absent, file_exists, exit_code, expr, stdout_golden
//
// Every check runs even after an earlier one failed; all failures are
// reported. When a scenario declares expect: N, the number of checks
// executed must equal N.
//
// The exit code is checked implicitly (default 0) and is not counted
// against expect. A mismatch fails the scenario and the captured stdout and
// stderr are logged.
//
// # Fixtures
//
// Before spawning, the runner removes the scenario's expected_directory and
// clean paths. Each scenario therefore starts from a known filesystem state
// regardless of what earlier runs left behind.
package harness
