package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/refloop/trace"
	"github.com/urfave/cli/v3"
)

const defaultPageSize = 20

var errTraceNotFound = errors.New("trace not found")

// traceSummary is derived from file metadata without reading the file.
type traceSummary struct {
	TraceID   string
	Size      int64
	UpdatedAt time.Time
}

type traceList struct {
	traces        []traceSummary
	nextPageToken string
}

// traceStore reads traces written by trace.FileRepository.
type traceStore struct {
	dir string
}

func newTraceStore(dir string) *traceStore {
	return &traceStore{dir: dir}
}

// List returns traces ordered by file name. pageToken is the opaque token of a
// previous page.
func (s *traceStore) List(pageSize int, pageToken string) (*traceList, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read trace directory", goerr.V("dir", s.dir))
	}

	var files []fs.DirEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, e)
	}
	slices.SortFunc(files, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })

	start := 0
	if pageToken != "" {
		last, err := base64.URLEncoding.DecodeString(pageToken)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid page token")
		}
		start = len(files)
		for i, f := range files {
			if f.Name() > string(last) {
				start = i
				break
			}
		}
	}

	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	end := min(start+pageSize, len(files))

	result := &traceList{}
	for _, f := range files[start:end] {
		info, err := f.Info()
		if err != nil {
			continue
		}
		result.traces = append(result.traces, traceSummary{
			TraceID:   strings.TrimSuffix(f.Name(), ".json"),
			Size:      info.Size(),
			UpdatedAt: info.ModTime(),
		})
	}
	if end < len(files) {
		result.nextPageToken = base64.URLEncoding.EncodeToString([]byte(files[end-1].Name()))
	}

	return result, nil
}

// Get loads one trace by ID.
func (s *traceStore) Get(traceID string) (*trace.Trace, error) {
	if traceID == "" || strings.ContainsAny(traceID, `/\`) {
		return nil, goerr.Wrap(errTraceNotFound, "invalid trace ID", goerr.V("trace_id", traceID))
	}

	data, err := os.ReadFile(filepath.Join(s.dir, traceID+".json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(errTraceNotFound, "no trace file", goerr.V("trace_id", traceID))
		}
		return nil, goerr.Wrap(err, "failed to read trace file", goerr.V("trace_id", traceID))
	}

	var t trace.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to parse trace file", goerr.V("trace_id", traceID))
	}
	return &t, nil
}

func traceDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "dir",
		Aliases:  []string{"d"},
		Sources:  cli.EnvVars("REFLOOP_TRACE_DIR"),
		Usage:    "Directory containing trace JSON files",
		Required: true,
	}
}

func traceCommand() *cli.Command {
	return &cli.Command{
		Name:  "trace",
		Usage: "Inspect traces written by run --trace-dir",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List traces",
				Flags: []cli.Flag{
					traceDirFlag(),
					&cli.IntFlag{Name: "page-size", Value: defaultPageSize, Usage: "Traces per page"},
					&cli.StringFlag{Name: "page-token", Usage: "Token printed by the previous page"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					list, err := newTraceStore(cmd.String("dir")).List(cmd.Int("page-size"), cmd.String("page-token"))
					if err != nil {
						return err
					}
					printTraceList(cmd.Root().Writer, list)
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Show the rounds of a trace",
				ArgsUsage: "TRACE_ID",
				Flags:     []cli.Flag{traceDirFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					t, err := newTraceStore(cmd.String("dir")).Get(cmd.Args().First())
					if err != nil {
						return err
					}
					printTrace(cmd.Root().Writer, t)
					return nil
				},
			},
		},
	}
}

func printTraceList(w io.Writer, list *traceList) {
	for _, t := range list.traces {
		fmt.Fprintf(w, "%s\t%d\t%s\n", t.TraceID, t.Size, t.UpdatedAt.Format(time.RFC3339))
	}
	if list.nextPageToken != "" {
		fmt.Fprintf(w, "next page token: %s\n", list.nextPageToken)
	}
}

func printTrace(w io.Writer, t *trace.Trace) {
	fmt.Fprintf(w, "Trace: %s\n", t.TraceID)
	if t.Metadata.Provider != "" || t.Metadata.Model != "" {
		fmt.Fprintf(w, "Provider: %s  Model: %s\n", t.Metadata.Provider, t.Metadata.Model)
	}

	root := t.RootSpan
	if root == nil {
		return
	}
	if root.Reflection != nil {
		fmt.Fprintf(w, "Agent: %s\nTask: %s\n", root.Reflection.AgentName, root.Reflection.Task)
	}

	for _, span := range root.Find(trace.SpanKindRound) {
		if span.Round == nil {
			continue
		}
		rd := span.Round
		line := fmt.Sprintf("Round %d: score=%d pass=%t tokens=%d duration=%s",
			rd.Round, rd.Score, rd.Pass, rd.TokensUsed, span.Duration)
		if rd.TerminationReason != "" {
			line += " stop=" + rd.TerminationReason
		}
		fmt.Fprintln(w, line)
	}

	if res := root.Result; res != nil {
		fmt.Fprintf(w, "Status: %s  Final score: %d  Total tokens: %d\n", res.Status, res.FinalScore, res.TotalTokens)
	}
	if root.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", root.Error)
	}
}
