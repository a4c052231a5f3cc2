package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
)

// 测试通过替换这两个函数模拟 EXDEV / 不支持硬链接等情况。
var (
	renameFunc = os.Rename
	linkFunc   = os.Link
)

// PathTypeConflictError 表示目标路径已存在但类型不对（例如图片名被目录占用）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示 rename/link 跨文件系统失败（EXDEV）。
// 临时文件总在目标目录内创建，正常情况下不会出现。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// WriteFileAtomic 原子写入并覆盖同名文件（卡组 JSON、report、页面快照）。
func WriteFileAtomic(dir, name string, data []byte) error {
	_, err := writeAtomic(dir, name, true, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
	return err
}

// WriteStreamAtomicNoOverwrite 把 r 的内容流式写入临时文件，再以不覆盖的方式发布为 name。
// 目标已存在时返回 os.ErrExist 且不触碰原文件。
// 用于图片下载：响应体不整体读入内存，中途失败也不会留下半截文件。
func WriteStreamAtomicNoOverwrite(dir, name string, r io.Reader) (int64, error) {
	return writeAtomic(dir, name, false, func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
}

func writeAtomic(dir, name string, replace bool, fill func(w io.Writer) (int64, error)) (int64, error) {
	dir = filepath.Clean(dir)
	dst := filepath.Join(dir, name)
	if err := checkTarget(dst, replace); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	n, err := fill(tmp)
	if err != nil {
		return n, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}

	if replace {
		err = Rename(tmpName, dst)
	} else {
		err = publishNoOverwrite(tmpName, dst)
	}
	if err != nil {
		return n, err
	}

	_ = syncDirBestEffort(dir)
	return n, nil
}

// checkTarget 在写入前拦截类型冲突；不覆盖模式下已存在即返回 os.ErrExist。
func checkTarget(dst string, replace bool) error {
	fi, err := os.Lstat(dst)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
	}
	if !fi.Mode().IsRegular() {
		return &PathTypeConflictError{Path: dst, Want: "regular file", Got: fi.Mode().Type().String()}
	}
	if !replace {
		return os.ErrExist
	}
	return nil
}

// publishNoOverwrite 用硬链接发布临时文件：目标已存在时 link 原子失败。
// 文件系统不支持硬链接时退化为“再检查一次 + rename”。
func publishNoOverwrite(tmpName, dst string) error {
	err := linkFunc(tmpName, dst)
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		return os.ErrExist
	}
	if isEXDEV(err) {
		return &CrossDeviceError{Src: tmpName, Dst: dst, Err: err}
	}
	if _, serr := os.Lstat(dst); serr == nil {
		return os.ErrExist
	}
	return Rename(tmpName, dst)
}

func syncDirBestEffort(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
