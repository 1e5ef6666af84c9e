// Package bufmgr creates and destroys the three temp-directory paths each
// session owns: an input buffer file, an output buffer file, and a named
// pipe, all world-readable/writable because the backend process may run
// as a different user than the gateway.
package bufmgr

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Buffers holds the three paths allocated for one session.
type Buffers struct {
	InputPath  string
	OutputPath string
	PipePath   string
}

const widePerm = 0o666

// Create allocates a fresh input file, output file, and named pipe under
// dir, all named after id so they're easy to correlate on disk, with
// unique random suffixes so concurrent sessions never collide. Any
// failure during creation unwinds everything created so far and reports
// "not allocated".
func Create(dir, id string) (Buffers, error) {
	input, err := createUniqueFile(dir, "shim_input_buf_"+id+"_")
	if err != nil {
		return Buffers{}, fmt.Errorf("not allocated: create input buffer: %w", err)
	}

	output, err := createUniqueFile(dir, "shim_output_buf_"+id+"_")
	if err != nil {
		_ = os.Remove(input)
		return Buffers{}, fmt.Errorf("not allocated: create output buffer: %w", err)
	}

	pipe, err := createUniquePipe(dir, "shim_output_pipe_"+id+"_")
	if err != nil {
		_ = os.Remove(input)
		_ = os.Remove(output)
		return Buffers{}, fmt.Errorf("not allocated: create output pipe: %w", err)
	}

	bufs := Buffers{InputPath: input, OutputPath: output, PipePath: pipe}
	return bufs, nil
}

// createUniqueFile makes a new empty regular file under dir with prefix,
// chmod'd world-rw, and returns its path.
func createUniqueFile(dir, prefix string) (string, error) {
	f, err := os.CreateTemp(dir, prefix+"*")
	if err != nil {
		return "", err
	}
	path := f.Name()
	closeErr := f.Close()
	if closeErr != nil {
		_ = os.Remove(path)
		return "", closeErr
	}
	if err := os.Chmod(path, widePerm); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// createUniquePipe reserves a unique path by creating a throwaway regular
// file, then creates a named pipe at a second, temporary path and renames
// it over the reserved path. The rename is what makes pipe creation
// atomic with respect to path uniqueness: mkfifo itself has no "O_EXCL
// with a random suffix" form, so we borrow os.CreateTemp's uniqueness
// guarantee and then swap the file for a pipe.
func createUniquePipe(dir, prefix string) (string, error) {
	reserved, err := createUniqueFile(dir, prefix)
	if err != nil {
		return "", err
	}

	pipeTmp := reserved + ".fifo"
	if err := unix.Mkfifo(pipeTmp, widePerm); err != nil {
		_ = os.Remove(reserved)
		return "", err
	}
	if err := os.Chmod(pipeTmp, widePerm); err != nil {
		_ = os.Remove(reserved)
		_ = os.Remove(pipeTmp)
		return "", err
	}
	if err := os.Rename(pipeTmp, reserved); err != nil {
		_ = os.Remove(reserved)
		_ = os.Remove(pipeTmp)
		return "", err
	}

	return reserved, nil
}

// Cleanup unlinks all three paths. Missing files are not an error: cleanup
// may run more than once, or after a partial Create failure.
func Cleanup(b Buffers) {
	if b.InputPath != "" {
		_ = os.Remove(b.InputPath)
	}
	if b.OutputPath != "" {
		_ = os.Remove(b.OutputPath)
	}
	if b.PipePath != "" {
		_ = os.Remove(b.PipePath)
	}
}

// AbsPath returns path in absolute form. Nothing in the gateway calls it;
// the paths Create returns are rendered to clients as created.
func AbsPath(path string) (string, error) {
	return filepath.Abs(path)
}
