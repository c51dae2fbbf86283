package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// passwordOrPrompt returns given if it is set, otherwise reads a password
// from the terminal without echo. The prompt goes to w so it never mixes
// with rendered output.
func passwordOrPrompt(given string, w io.Writer) (string, error) {
	if given != "" {
		return given, nil
	}
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "reading password", err)
	}
	return string(pw), nil
}
