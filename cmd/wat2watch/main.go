package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// 退出码：0 成功；1 运行失败；2 用法错误。
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], stdStreams()))
}

// streams 是 CLI 的输入输出；测试中替换为 buffer。
type streams struct {
	out io.Writer
	err io.Writer
	// outTTY 为 false 时 stdout 必须且仅输出一个 JSON 文档。
	outTTY bool
	errTTY bool
}

func stdStreams() streams {
	return streams{out: os.Stdout, err: os.Stderr, outTTY: isTTY(os.Stdout), errTTY: isTTY(os.Stderr)}
}

func run(args []string, s streams) int {
	root := newRootCmd(s)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(s.err, "错误：%v\n", ee.err)
		}
		return ee.code
	}

	var ue *usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(s.err, "参数错误：%v\n\n使用 \"wat2watch --help\" 查看用法。\n", err)
		return exitUsage
	}

	fmt.Fprintf(s.err, "错误：%v\n", err)
	return exitFailure
}

// usageError 表示参数错误（退出码 2）。
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitError 携带退出码；err 为 nil 表示结果已输出，只需退出。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
