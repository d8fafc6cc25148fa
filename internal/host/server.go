// Package host serves the manager's command surface as newline-delimited
// JSON and binds window events to it.
//
// Each request line is {"id":N,"cmd":"name","args":{...}} and is answered
// by {"id":N,"ok":bool,"result":...,"error":{"kind","name","message"}}.
// Render loop events are written as {"event":"fps-update","payload":60}.
// Requests are handled concurrently; the manager serializes them.
package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/manager"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxLine is the longest request line accepted.
const MaxLine = 1 << 20

// Request is one command line.
type Request struct {
	ID   int64               `json:"id"`
	Cmd  string              `json:"cmd"`
	Args jsoniter.RawMessage `json:"args,omitempty"`
}

// ErrorBody is the wire form of a *simviz.Error.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

// Response answers one Request.
type Response struct {
	ID     int64      `json:"id"`
	OK     bool       `json:"ok"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// Event is an unsolicited message to the host.
type Event struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// NewErrorBody converts err to its wire form.
func NewErrorBody(err error) *ErrorBody {
	e := simviz.Classify(err)
	msg := e.Message
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if msg == "" {
		msg = e.Error()
	}
	return &ErrorBody{Kind: e.Kind.String(), Name: e.Name, Message: msg}
}

// Server answers commands for one manager. It implements manager.Emitter,
// so render loop events share the response stream.
type Server struct {
	m        *manager.Manager
	commands map[string]command

	mu  sync.Mutex
	out *bufio.Writer
}

// NewServer creates a server for m.
func NewServer(m *manager.Manager) *Server {
	s := &Server{m: m}
	s.commands = s.table()
	return s
}

// Commands lists the command names the server understands.
func (s *Server) Commands() []string {
	names := make([]string, 0, len(s.commands))
	for n := range s.commands {
		names = append(names, n)
	}
	return names
}

// Serve reads requests from r until EOF or ctx is done and writes
// responses and events to w. It waits for in-flight requests before
// returning.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.mu.Lock()
	s.out = bufio.NewWriter(w)
	s.mu.Unlock()

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), MaxLine)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				wg.Wait()
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.write(s.Handle(ctx, line))
			}()
		}
	}
}

// Handle decodes and executes one request line.
func (s *Server) Handle(ctx context.Context, line []byte) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Error: NewErrorBody(simviz.Serialization("malformed request", err))}
	}
	result, err := s.Call(ctx, req.Cmd, req.Args)
	if err != nil {
		simviz.Logger().Debug("host: command failed", "cmd", req.Cmd, "err", err)
		return Response{ID: req.ID, Error: NewErrorBody(err)}
	}
	return Response{ID: req.ID, OK: true, Result: result}
}

// Call executes a command with raw JSON arguments.
func (s *Server) Call(ctx context.Context, cmd string, args []byte) (any, error) {
	c, ok := s.commands[cmd]
	if !ok {
		return nil, simviz.InvalidSetting(cmd, "unknown command")
	}
	return c(ctx, args)
}

// Emit writes a loop event.
func (s *Server) Emit(event string, payload any) {
	s.write(Event{Event: event, Payload: payload})
}

func (s *Server) write(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		simviz.Logger().Error("host: encode message", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return
	}
	s.out.Write(data)
	s.out.WriteByte('\n')
	if err := s.out.Flush(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		simviz.Logger().Warn("host: write", "err", err)
	}
}

// decode unmarshals command arguments; empty arguments leave v zero.
func decode(args []byte, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return simviz.Serialization(fmt.Sprintf("bad arguments: %v", err), nil)
	}
	return nil
}
