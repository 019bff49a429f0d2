package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Overrides holds KEY=VALUE pairs read from a local override file.
// Keys are upper-cased.
type Overrides map[string]string

// ReadOverrideFile loads path. A missing file yields empty overrides.
// The numbers of malformed lines that were skipped are returned alongside.
func ReadOverrideFile(path string) (Overrides, []int, error) {
	if path == "" {
		return Overrides{}, nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Overrides{}, nil, nil
		}
		return nil, nil, fmt.Errorf("open override file: %w", err)
	}
	defer f.Close()

	overrides, skipped, err := ParseOverrides(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read override file %s: %w", path, err)
	}
	return overrides, skipped, nil
}

// ParseOverrides reads KEY=VALUE lines from r. Blank lines and lines starting
// with '#' are ignored. A line without '=' or with an empty key is skipped and
// its 1-based number reported; reading continues with the next line. Later
// duplicates win. Values are taken literally up to the end of the line, which
// may be of any length.
func ParseOverrides(r io.Reader) (Overrides, []int, error) {
	overrides := Overrides{}
	var skipped []int

	reader := bufio.NewReader(r)
	lineNo := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, nil, err
		}
		if line == "" && err != nil {
			break
		}

		lineNo++
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\uFEFF")
		}
		parseOverrideLine(overrides, &skipped, lineNo, line)

		if err != nil {
			break
		}
	}

	return overrides, skipped, nil
}

func parseOverrideLine(overrides Overrides, skipped *[]int, lineNo int, line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	key, value, ok := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		*skipped = append(*skipped, lineNo)
		return
	}

	overrides[strings.ToUpper(key)] = strings.TrimSpace(value)
}

// Lookup returns the override for key, treating empty values as absent.
func (o Overrides) Lookup(key string) (string, bool) {
	value, ok := o[strings.ToUpper(key)]
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
