package taskrun

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pirakansa/addonrepo/pkg/config"
)

// Output receives task stdout and stderr. Both default to the process streams.
type Output struct {
	Stdout io.Writer
	Stderr io.Writer
}

func ListTaskNames(tasks map[string]config.TaskDef) []string {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func RunTask(ctx context.Context, tasks map[string]config.TaskDef, name, rootDir string, args []string, out Output) error {
	running := map[string]bool{}
	completed := map[string]bool{}
	return runTask(ctx, tasks, name, rootDir, args, out, running, completed)
}

// RunSequence runs names in order inside rootDir. Shared dependencies run once.
func RunSequence(ctx context.Context, tasks map[string]config.TaskDef, names []string, rootDir string, out Output) error {
	running := map[string]bool{}
	completed := map[string]bool{}
	for _, name := range names {
		if err := runTask(ctx, tasks, name, rootDir, nil, out, running, completed); err != nil {
			return err
		}
	}
	return nil
}

func runTask(ctx context.Context, tasks map[string]config.TaskDef, name, rootDir string, args []string, out Output, running, completed map[string]bool) error {
	if completed[name] {
		return nil
	}
	task, ok := tasks[name]
	if !ok {
		return fmt.Errorf("task %q is not defined", name)
	}
	if running[name] {
		return fmt.Errorf("task dependency cycle detected at %q", name)
	}
	running[name] = true
	for _, dep := range task.DependsOn {
		if err := runTask(ctx, tasks, dep, rootDir, nil, out, running, completed); err != nil {
			return err
		}
	}
	running[name] = false

	if strings.TrimSpace(task.Run) != "" {
		cmdLine := task.Run
		if len(args) > 0 {
			cmdLine += " " + strings.Join(args, " ")
		}
		cmd := exec.CommandContext(ctx, "bash", "-lc", cmdLine)
		cwd := rootDir
		if task.CWD != "" {
			if filepath.IsAbs(task.CWD) {
				cwd = task.CWD
			} else {
				cwd = filepath.Join(rootDir, task.CWD)
			}
		}
		cmd.Dir = cwd
		cmd.Stdout = out.Stdout
		if cmd.Stdout == nil {
			cmd.Stdout = os.Stdout
		}
		cmd.Stderr = out.Stderr
		if cmd.Stderr == nil {
			cmd.Stderr = os.Stderr
		}
		cmd.Env = os.Environ()
		for k, v := range task.Env {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("task %q failed: %w", name, err)
		}
	}
	completed[name] = true
	return nil
}
