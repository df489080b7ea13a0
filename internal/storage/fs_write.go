package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/any-hub/resource-hub/internal/keylock"
)

// writeLocks 避免同一目标路径被并发写入。
var writeLocks = keylock.New[string]()

// CopyIfMissing 将 src 复制到 dst。dst 已存在时返回 (false, nil)，绝不覆盖。
// 写入经临时文件 + rename 完成，失败时清理临时文件。
func CopyIfMissing(ctx context.Context, src, dst string) (bool, error) {
	unlock := writeLocks.Lock(dst)
	defer unlock()

	if _, err := os.Lstat(dst); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, errors.Wrapf(err, "stat %s", dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return false, errors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return false, errors.Wrapf(err, "stat %s", src)
	}
	if !info.Mode().IsRegular() {
		return false, errors.Errorf("%s is not a regular file", src)
	}

	if err := writeAtomic(ctx, dst, in, info.Mode().Perm()); err != nil {
		return false, err
	}
	// 保留源文件时间戳。
	_ = os.Chtimes(dst, info.ModTime(), info.ModTime())
	return true, nil
}

// WriteFileAtomic 以临时文件 + rename 的方式写入 dst，覆盖已有内容。
func WriteFileAtomic(ctx context.Context, dst string, body io.Reader) error {
	unlock := writeLocks.Lock(dst)
	defer unlock()
	return writeAtomic(ctx, dst, body, 0o644)
}

func writeAtomic(ctx context.Context, dst string, body io.Reader, perm fs.FileMode) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	tempFile, err := os.CreateTemp(dir, ".copy-*")
	if err != nil {
		return errors.Wrapf(err, "create temp file in %s", dir)
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return errors.Wrapf(err, "write %s", dst)
	}
	if perm != 0 {
		_ = os.Chmod(tempName, perm|0o200)
	}

	if err := os.Rename(tempName, dst); err != nil {
		os.Remove(tempName)
		return errors.Wrapf(err, "rename into %s", dst)
	}
	return nil
}

// IsTempFile 判断文件名是否为写入过程中的临时文件，枚举与监听时需忽略。
func IsTempFile(name string) bool {
	base := filepath.Base(name)
	return len(base) > len(".copy-") && base[:len(".copy-")] == ".copy-"
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
