package iocli

//go:generate moq -out io_mock.go . IO

// IO is the terminal of a command: formatted output and line input
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	// ReadLine returns the next input line without the line break; io.EOF at the end
	ReadLine() (string, error)
	ReadInput(prompt string) (string, error)
	ReadPassword(prompt string) (string, error)
}
