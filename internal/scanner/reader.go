package scanner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Aman-CERP/chatsearch/internal/errors"
	"github.com/Aman-CERP/chatsearch/internal/store"
	"github.com/Aman-CERP/chatsearch/internal/transcript"
)

// ctxCheckInterval is how many lines are read between context checks.
const ctxCheckInterval = 1024

// ReadFile streams a transcript's messages to fn in line order. Lines that do
// not decode or yield no message are skipped. It returns how many messages
// were passed to fn. Open and read failures are returned as IO errors; an
// error from fn stops reading and is returned unchanged.
func ReadFile(ctx context.Context, file *FileInfo, fn func(*store.Message) error) (int, error) {
	f, err := os.Open(file.AbsPath)
	if err != nil {
		code := errors.ErrCodeFileNotFound
		if os.IsPermission(err) {
			code = errors.ErrCodeFilePermission
		}
		return 0, errors.New(code, "cannot open transcript", err).WithDetail("path", file.AbsPath)
	}
	defer f.Close()

	src := transcript.Source{FilePath: file.AbsPath, Project: file.Project}
	reader := bufio.NewReaderSize(f, 64*1024)

	count := 0
	for lineNo := 1; ; lineNo++ {
		if lineNo%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return count, err
			}
		}

		// ReadBytes has no line length limit, unlike bufio.Scanner
		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && readErr != io.EOF {
			return count, errors.IOError(fmt.Sprintf("read failed at line %d", lineNo), readErr).
				WithDetail("path", file.AbsPath)
		}

		if line = bytes.TrimSpace(line); len(line) > 0 {
			if msg, ok := transcript.ParseLine(line, src); ok {
				if err := fn(msg); err != nil {
					return count, err
				}
				count++
			}
		}

		if readErr == io.EOF {
			return count, nil
		}
	}
}
