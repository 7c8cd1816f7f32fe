package crawler

import (
	"bufio"
	"io"
	"os"
	"strings"

	scrapeerrors "zephuris/divarworker/pkg/errors"
)

// ReadSeeds reads the seed URL file at path
func ReadSeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, scrapeerrors.NewConfiguration("failed to open seed file "+path, err)
	}
	defer f.Close()

	return ParseSeeds(f)
}

// ParseSeeds reads one URL per line. Lines are trimmed and stripped of
// surrounding double quotes; blank lines and # comments are skipped.
func ParseSeeds(r io.Reader) ([]string, error) {
	var seeds []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.Trim(strings.TrimSpace(scanner.Text()), `"`)
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, scrapeerrors.NewConfiguration("failed to read seed file", err)
	}
	return seeds, nil
}
