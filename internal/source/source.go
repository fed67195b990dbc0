// Package source loads the list of subscription sources to process.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/John-Robertt/subprobe-go/internal/dedup"
	"github.com/John-Robertt/subprobe-go/internal/model"
)

type Format string

const (
	// FormatLines is one source URL per line.
	FormatLines Format = "lines"
	// FormatBlocks separates sources by blank lines; the lines of a block
	// are concatenated, so a long URL may be wrapped.
	FormatBlocks Format = "blocks"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatLines:
		return FormatLines, nil
	case FormatBlocks:
		return FormatBlocks, nil
	default:
		return "", fmt.Errorf("unknown input format %q (want lines|blocks)", s)
	}
}

type LoadError struct {
	AppError model.AppError
	Cause    error
}

func (e *LoadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Load reads the source list at path. A missing or unreadable file is a
// *LoadError; an empty list is not an error.
func Load(path string, format Format) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		code, msg := "INPUT_READ_ERROR", "cannot open input file"
		if errors.Is(err, fs.ErrNotExist) {
			code, msg = "INPUT_NOT_FOUND", "input file does not exist"
		}
		return nil, &LoadError{
			AppError: model.AppError{Code: code, Message: msg, Stage: "load_input", URL: path},
			Cause:    err,
		}
	}
	defer f.Close()

	out, err := Parse(f, format)
	if err != nil {
		return nil, &LoadError{
			AppError: model.AppError{Code: "INPUT_READ_ERROR", Message: "cannot read input file", Stage: "load_input", URL: path},
			Cause:    err,
		}
	}
	return out, nil
}

// Parse reads sources from r. Lines starting with '#' are comments.
// Duplicates are dropped, first occurrence wins.
func Parse(r io.Reader, format Format) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		sources []string
		block   strings.Builder
	)
	flush := func() {
		if block.Len() > 0 {
			sources = append(sources, block.String())
			block.Reset()
		}
	}

	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		switch format {
		case FormatBlocks:
			if line == "" {
				flush()
				continue
			}
			block.WriteString(line)
		default:
			if line != "" {
				sources = append(sources, line)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()

	return dedup.Strings(sources), nil
}
