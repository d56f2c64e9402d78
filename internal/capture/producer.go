package capture

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	pkgerrors "github.com/livp123/pktstream/pkg/errors"
	"go.uber.org/zap"
)

// Argument placeholders replaced on every launch.
const (
	ArgDuration = "{duration}"
	ArgOutput   = "{output}"
)

// Process is a launched producer.
type Process interface {
	Pid() int
	Wait() error
}

// Launcher starts the external producer for one session.
// The producer runs for duration seconds and appends lines to output.
// Launcher 为一次会话启动外部抓包程序。
type Launcher interface {
	Launch(ctx context.Context, duration int, output string) (Process, error)
}

// ExecLauncher runs the producer as a child process.
type ExecLauncher struct {
	Path string
	Args []string
	log  *zap.SugaredLogger
}

// NewExecLauncher creates a launcher for path with an argument template.
// NewExecLauncher 使用参数模板创建启动器。
func NewExecLauncher(path string, args []string, log *zap.SugaredLogger) *ExecLauncher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ExecLauncher{Path: path, Args: args, log: log}
}

// ExpandArgs substitutes the duration and output placeholders.
func ExpandArgs(tmpl []string, duration int, output string) []string {
	r := strings.NewReplacer(ArgDuration, strconv.Itoa(duration), ArgOutput, output)
	out := make([]string, len(tmpl))
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out
}

// Launch starts the producer without waiting for it to exit. The process is
// killed when ctx is canceled.
func (l *ExecLauncher) Launch(ctx context.Context, duration int, output string) (Process, error) {
	args := ExpandArgs(l.Args, duration, output)
	cmd := exec.CommandContext(ctx, l.Path, args...)
	if err := cmd.Start(); err != nil {
		return nil, pkgerrors.NewLaunchError(l.Path, err)
	}
	l.log.Infof("🚀 Producer started: %s %s (pid %d)", l.Path, strings.Join(args, " "), cmd.Process.Pid)
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}
