package loader

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/matzehuels/geomap/pkg/errors"
)

// Record is one embedded mask ready for loading.
type Record struct {
	Category string    `json:"category"`
	Lon      float64   `json:"lon"`
	Lat      float64   `json:"lat"`
	Vector   []float64 `json:"vector"`
}

// Sink receives batches of records.
type Sink interface {
	Put(ctx context.Context, recs []Record) error
	Close(ctx context.Context) error
}

// Args builds the loader argument list
//
//	<dim> <lon> <lat> <v0> ... <vdim-1> [<lon> <lat> <v0> ...]...
//
// All records must share one vector length.
func Args(recs []Record) ([]string, error) {
	if len(recs) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no records")
	}
	dim := len(recs[0].Vector)
	if dim == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "empty embedding")
	}
	args := make([]string, 0, 1+len(recs)*(dim+2))
	args = append(args, strconv.Itoa(dim))
	for _, r := range recs {
		if len(r.Vector) != dim {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"record %v;%v has %d dimensions, want %d", r.Lon, r.Lat, len(r.Vector), dim)
		}
		args = append(args, formatFloat(r.Lon), formatFloat(r.Lat))
		for _, v := range r.Vector {
			args = append(args, formatFloat(v))
		}
	}
	return args, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CommandRunner runs name with args in dir.
type CommandRunner func(ctx context.Context, dir, name string, args ...string) error

// ExecSink hands records to the external embedding loader binary.
type ExecSink struct {
	Binary string // loader executable, e.g. ./add_embeddings
	Dir    string // working directory holding the target database
	Run    CommandRunner
}

// NewExecSink returns a sink that runs binary in dir.
func NewExecSink(binary, dir string) *ExecSink {
	return &ExecSink{Binary: binary, Dir: dir, Run: runCommand}
}

func (s *ExecSink) Put(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}
	args, err := Args(recs)
	if err != nil {
		return err
	}
	run := s.Run
	if run == nil {
		run = runCommand
	}
	return run(ctx, s.Dir, s.Binary, args...)
}

func (s *ExecSink) Close(context.Context) error { return nil }

func runCommand(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return nil
}
