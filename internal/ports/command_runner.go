package ports

import "context"

// Command describes one external tool invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the environment of the current process.
	Env map[string]string
	// Stdin, when non-empty, is written to the process standard input.
	Stdin string
}

// CommandResult is the captured outcome of a Command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs external tools.
// A non-zero exit status is reported as an error; the result is still returned.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}
