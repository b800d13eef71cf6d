// Package processtest provides a process.Runner that records invocations
// instead of spawning processes.
package processtest

import (
	"context"
	"strings"
	"sync"

	"github.com/mmr-tortoise/xtask/pkg/process"
)

// Response is the scripted outcome of a matching invocation.
type Response struct {
	Output string
	Err    error
}

// Recorder records every command it is asked to run. Responses are matched
// by command-line prefix; the longest matching prefix wins. Unmatched
// commands succeed with empty output.
type Recorder struct {
	mu        sync.Mutex
	cmds      []process.Cmd
	responses map[string]Response
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{responses: make(map[string]Response)}
}

// On scripts the response for commands whose line starts with prefix.
func (r *Recorder) On(prefix string, resp Response) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[prefix] = resp
	return r
}

// Fail scripts err for commands whose line starts with prefix.
func (r *Recorder) Fail(prefix string, err error) *Recorder {
	return r.On(prefix, Response{Err: err})
}

// Run implements process.Runner.
func (r *Recorder) Run(_ context.Context, cmd process.Cmd) error {
	return r.record(cmd).Err
}

// Output implements process.Runner.
func (r *Recorder) Output(_ context.Context, cmd process.Cmd) (string, error) {
	resp := r.record(cmd)
	return resp.Output, resp.Err
}

func (r *Recorder) record(cmd process.Cmd) Response {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cmds = append(r.cmds, cmd)
	line := cmd.Line()

	best, found := "", false
	for prefix := range r.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) >= len(best) {
			best, found = prefix, true
		}
	}
	if !found {
		return Response{}
	}
	return r.responses[best]
}

// Commands returns the recorded commands.
func (r *Recorder) Commands() []process.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Cmd(nil), r.cmds...)
}

// Lines returns the recorded command lines.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	lines := make([]string, 0, len(cmds))
	for _, c := range cmds {
		lines = append(lines, c.Line())
	}
	return lines
}
