package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"taskrank/internal/host"
	"taskrank/internal/i18n"

	"github.com/chzyer/readline"
)

// LineReader 读取一行输入
// LineReader reads one line of input
type LineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

type basicLineReader struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewBasicReader 基于普通 io.Reader 的行读取（非终端或测试使用）
// NewBasicReader reads lines from a plain reader, for pipes and tests
func NewBasicReader(in io.Reader, out io.Writer) LineReader {
	return &basicLineReader{reader: bufio.NewReader(in), out: out}
}

func (b *basicLineReader) ReadLine(prompt string) (string, error) {
	if b.out != nil {
		fmt.Fprint(b.out, prompt)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *basicLineReader) Close() error { return nil }

type readlineReader struct {
	instance *readline.Instance
}

// NewReadline 创建 readline 读取器；终端不可用时回退到 stdin/stdout 的普通读取
// NewReadline opens a readline reader, falling back to plain stdin/stdout reading
func NewReadline(in io.Reader, out io.Writer) (LineReader, error) {
	instance, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return NewBasicReader(in, out), err
	}
	return &readlineReader{instance: instance}, nil
}

func (r *readlineReader) ReadLine(prompt string) (string, error) {
	r.instance.SetPrompt(prompt)
	return r.instance.Readline()
}

func (r *readlineReader) Close() error {
	if r == nil || r.instance == nil {
		return nil
	}
	return r.instance.Close()
}

// Line 行模式数量提示：无效输入时提示并重试
// Line is the line-mode count prompt; invalid input is reported and asked again
type Line struct {
	Reader  LineReader
	Out     io.Writer
	Catalog *i18n.Catalog
}

var _ host.Prompter = (*Line)(nil)

func (l *Line) PromptCount(ctx context.Context, defaultCount int) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, host.ErrCancelled
		}
		input, err := l.Reader.ReadLine(label(l.Catalog, defaultCount))
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return 0, host.ErrCancelled
			}
			return 0, fmt.Errorf("read count: %w", err)
		}
		n, err := ParseCount(input, defaultCount)
		if err == nil {
			return n, nil
		}
		if l.Out != nil {
			fmt.Fprintln(l.Out, invalidText(l.Catalog))
		}
	}
}
