package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/HarrySoteriou/gallery/internal/rag"
)

// readInput returns the contents of the named files joined by blank lines,
// or stdin when no files are named and stdin is piped.
func readInput(files []string) (string, error) {
	if len(files) == 0 {
		stat, err := os.Stdin.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	parts := make([]string, 0, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, "\n\n"), nil
}

// streamTo prints only the new suffix of each partial. A partial that does
// not extend the previous one (a retried generation) starts a new line.
func streamTo(w io.Writer) rag.ProgressFunc {
	var printed string
	return func(partial string, done bool) {
		if !strings.HasPrefix(partial, printed) {
			fmt.Fprintln(w)
			printed = ""
		}
		fmt.Fprint(w, partial[len(printed):])
		printed = partial
		if done {
			fmt.Fprintln(w)
		}
	}
}
