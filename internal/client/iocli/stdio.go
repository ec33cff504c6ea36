package iocli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Stdio пишет в произвольный writer; терминал определяется по файловому дескриптору
type Stdio struct {
	out io.Writer
	fd  int
	tty bool
}

// NewStdio returns IO bound to os.Stdout
func NewStdio() IO {
	return NewWriter(os.Stdout)
}

// NewWriter returns IO writing to w. Only an *os.File can be a terminal.
func NewWriter(w io.Writer) IO {
	s := &Stdio{out: w, fd: -1}
	if f, ok := w.(*os.File); ok {
		s.fd = int(f.Fd())
		s.tty = term.IsTerminal(s.fd)
	}
	return s
}

func (s *Stdio) Println(a ...any) {
	_, _ = fmt.Fprintln(s.out, a...)
}

func (s *Stdio) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(s.out, format, a...)
}

func (s *Stdio) Write(p []byte) (int, error) {
	return s.out.Write(p)
}

func (s *Stdio) IsTerminal() bool {
	return s.tty
}

// Width returns the terminal width, or 0 when output is not a terminal
func (s *Stdio) Width() int {
	if !s.tty {
		return 0
	}
	w, _, err := term.GetSize(s.fd)
	if err != nil {
		return 0
	}
	return w
}
