package output

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/John-Robertt/subprobe-go/internal/pipeline"
)

// Sink persists the result of a run.
type Sink interface {
	Write(ctx context.Context, res *pipeline.Result) error
}

const ReportFile = "report.txt"

// DirSink writes artifacts under Dir:
//
//	raw/<tier>_<protocol>.txt
//	base64/<tier>_<protocol>.txt
//	sources/sub_<n>/<encoding>/<tier>_<protocol>.txt   (PerSource)
//	report.txt
//
// Each Write first removes what a previous Write produced. Other files in
// Dir are left alone.
type DirSink struct {
	Dir       string
	PerSource bool
	Encodings []Encoding // default raw and base64
	Logger    *slog.Logger
}

type WriteError struct {
	Path  string
	Cause error
}

func (e *WriteError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("write %s: %v", e.Path, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

type written struct {
	path  string
	lines int
	size  int
}

func (s *DirSink) Write(ctx context.Context, res *pipeline.Result) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	encs := s.Encodings
	if len(encs) == 0 {
		encs = []Encoding{EncodingRaw, EncodingBase64}
	}

	if err := s.reset(); err != nil {
		return err
	}

	var files []written
	write := func(rel string, lines []string, enc Encoding) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		body := Render(lines, enc)
		p := filepath.Join(s.Dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return &WriteError{Path: p, Cause: err}
		}
		if err := os.WriteFile(p, body, 0o644); err != nil {
			return &WriteError{Path: p, Cause: err}
		}
		files = append(files, written{path: filepath.ToSlash(rel), lines: len(lines), size: len(body)})
		return nil
	}

	for _, a := range Artifacts(res) {
		for _, enc := range encs {
			if err := write(filepath.Join(string(enc), a.Name()), a.Lines, enc); err != nil {
				return err
			}
		}
	}

	if s.PerSource {
		for _, sr := range res.Sources {
			dir := filepath.Join("sources", fmt.Sprintf("sub_%d", sr.Index))
			for _, a := range SourceArtifacts(sr) {
				for _, enc := range encs {
					if err := write(filepath.Join(dir, string(enc), a.Name()), a.Lines, enc); err != nil {
						return err
					}
				}
			}
		}
	}

	report := filepath.Join(s.Dir, ReportFile)
	if err := os.WriteFile(report, []byte(renderReport(res, files)), 0o644); err != nil {
		return &WriteError{Path: report, Cause: err}
	}

	log.Info("output: artifacts written", "dir", s.Dir, "files", len(files), "run_id", res.RunID)
	return nil
}

func (s *DirSink) reset() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return &WriteError{Path: s.Dir, Cause: err}
	}
	for _, name := range []string{string(EncodingRaw), string(EncodingBase64), "sources", ReportFile} {
		p := filepath.Join(s.Dir, name)
		if err := os.RemoveAll(p); err != nil {
			return &WriteError{Path: p, Cause: err}
		}
	}
	return nil
}

// Report renders the plain-text run summary without the file list.
func Report(res *pipeline.Result) string {
	return renderReport(res, nil)
}

func renderReport(res *pipeline.Result, files []written) string {
	sum := res.Summary
	n := func(v int) string { return humanize.Comma(int64(v)) }

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", res.RunID)
	fmt.Fprintf(&b, "Started: %s\n", res.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Total sources: %s\n", n(sum.Total))
	fmt.Fprintf(&b, "Processed sources: %s\n", n(sum.Processed))
	fmt.Fprintf(&b, "Skipped/failed sources: %s\n", n(sum.Skipped))
	fmt.Fprintf(&b, "Lines: %s (malformed %s, duplicates %s, no host %s)\n",
		n(sum.Lines), n(sum.Malformed), n(sum.Duplicates), n(sum.Unresolvable))
	fmt.Fprintf(&b, "Probed: %s (good %s, warn %s, bad %s)\n", n(sum.Probed), n(sum.Good), n(sum.Warn), n(sum.Bad))
	fmt.Fprintf(&b, "Routed: %s (truncated %s)\n", n(sum.Routed), n(sum.Truncated))

	b.WriteString("Sources:\n")
	for _, sr := range res.Sources {
		if sr.Status == pipeline.StatusSkipped {
			fmt.Fprintf(&b, " - sub_%d skipped %s %s\n", sr.Index, sr.Reason, sr.URL)
			continue
		}
		fmt.Fprintf(&b, " - sub_%d good=%s warn=%s bad=%s routed=%s %s\n",
			sr.Index, n(sr.Good), n(sr.Warn), n(sr.Bad), n(len(sr.Routed)), sr.URL)
	}

	if files != nil {
		b.WriteString("Files created:\n")
		for _, f := range files {
			fmt.Fprintf(&b, " - %s (%s lines, %s)\n", f.path, n(f.lines), humanize.Bytes(uint64(f.size)))
		}
	}
	return b.String()
}
