package halorbits

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ErrOracle is returned when the SPICE helper reports an error or dies.
var ErrOracle = errors.New("spice oracle")

// SPICE queries the NAIF toolkit through a long-lived python helper. Requests are one tab separated line each
// and the helper replies with one line: a bracketed list of numbers, `ok`, a bare string or `error: <msg>`.
type SPICE struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner
	logger log.Logger
	closed bool
}

// NewSPICE starts the helper script with the provided python interpreter.
func NewSPICE(python, helper string, logger log.Logger) (*SPICE, error) {
	if python == "" {
		python = "python3"
	}
	if helper == "" {
		helper = "cmd/refframes/oracle.py"
	}
	return startSPICE(exec.Command(python, helper), logger)
}

func startSPICE(cmd *exec.Cmd, logger log.Logger) (*SPICE, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: could not start %s: %s", ErrOracle, cmd.Path, err)
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	s := &SPICE{cmd: cmd, stdin: stdin, stdout: scanner, logger: log.With(logger, "subsys", "spice")}
	level.Debug(s.logger).Log("msg", "oracle started", "pid", cmd.Process.Pid)
	return s, nil
}

// call sends one request and returns the raw response.
func (s *SPICE) call(args ...string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("%w: closed", ErrOracle)
	}
	if _, err := fmt.Fprintln(s.stdin, strings.Join(args, "\t")); err != nil {
		return "", fmt.Errorf("%w: %s", ErrOracle, err)
	}
	if !s.stdout.Scan() {
		err := s.stdout.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return "", fmt.Errorf("%w: %s: %s", ErrOracle, args[0], err)
	}
	resp := strings.TrimSpace(s.stdout.Text())
	if strings.HasPrefix(resp, "error:") {
		return "", fmt.Errorf("%w: %s: %s", ErrOracle, args[0], strings.TrimSpace(strings.TrimPrefix(resp, "error:")))
	}
	return resp, nil
}

// Furnsh implements the Ephemeris interface.
func (s *SPICE) Furnsh(path string) error {
	resp, err := s.call("furnsh", path)
	if err != nil {
		return err
	}
	if resp != "ok" {
		return fmt.Errorf("%w: unexpected furnsh response `%s`", ErrOracle, resp)
	}
	return nil
}

// Coverage implements the Ephemeris interface.
func (s *SPICE) Coverage(kernel string, body Body) (Window, error) {
	resp, err := s.call("cover", kernel, string(body))
	if err != nil {
		return Window{}, err
	}
	vals, err := parseVector(resp)
	if err != nil {
		return Window{}, err
	}
	if len(vals) < 2 {
		return Window{}, fmt.Errorf("%w: %s in %s", ErrNoCoverage, body, kernel)
	}
	return Window{Epoch(vals[0]), Epoch(vals[1])}, nil
}

// State implements the Ephemeris interface.
func (s *SPICE) State(target Body, et Epoch, frame string, center Body) (State, error) {
	resp, err := s.call("state", string(target), strconv.FormatFloat(float64(et), 'g', -1, 64), frame, string(center))
	if err != nil {
		return State{}, err
	}
	vals, err := parseVector(resp)
	if err != nil {
		return State{}, err
	}
	if len(vals) != 6 {
		return State{}, fmt.Errorf("%w: expected a 6-vector, got %d components", ErrOracle, len(vals))
	}
	return State{R: vec(vals[:3]), V: vec(vals[3:])}, nil
}

// ET2UTC implements the Ephemeris interface.
func (s *SPICE) ET2UTC(et Epoch) (string, error) {
	return s.call("et2utc", strconv.FormatFloat(float64(et), 'g', -1, 64))
}

// UTC2ET implements the Ephemeris interface.
func (s *SPICE) UTC2ET(utc string) (Epoch, error) {
	resp, err := s.call("str2et", utc)
	if err != nil {
		return 0, err
	}
	vals, err := parseVector(resp)
	if err != nil {
		return 0, err
	}
	if len(vals) != 1 {
		return 0, fmt.Errorf("%w: expected one epoch, got %d", ErrOracle, len(vals))
	}
	return Epoch(vals[0]), nil
}

// Close stops the helper.
func (s *SPICE) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stdin.Close()
	err := s.cmd.Wait()
	level.Debug(s.logger).Log("msg", "oracle stopped", "err", err)
	return err
}

// parseVector parses a `[a,b,...]` response.
func parseVector(resp string) ([]float64, error) {
	resp = strings.TrimSpace(resp)
	if len(resp) < 2 || resp[0] != '[' || resp[len(resp)-1] != ']' {
		return nil, fmt.Errorf("%w: malformed response `%s`", ErrOracle, resp)
	}
	resp = strings.TrimSpace(resp[1 : len(resp)-1])
	if resp == "" {
		return nil, nil
	}
	components := strings.Split(resp, ",")
	vals := make([]float64, len(components))
	for i, c := range components {
		fl, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrOracle, err)
		}
		vals[i] = fl
	}
	return vals, nil
}

