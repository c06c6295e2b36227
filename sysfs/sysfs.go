// Package sysfs contains helpers for reading and writing single-value kernel
// control nodes.
package sysfs

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/pgaskin/partsd/metrics"
	"golang.org/x/sys/unix"
)

// ReadLine reads the first line of the file, without the trailing newline.
func ReadLine(name string) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 512), 4096)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return sc.Text(), nil
}

// WriteLine truncates the file and writes value to it. The file is not
// created if it doesn't exist.
func WriteLine(name, value string) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_TRUNC, 0)
	if err == nil {
		_, err = f.WriteString(value)
		if err1 := f.Close(); err == nil {
			err = err1
		}
	}
	metrics.SysfsWrites.WithLabelValues(metrics.Status(err)).Inc()
	return err
}

// ReadInt reads a signed integer from the first line of the file.
func ReadInt[T ~int | ~int8 | ~int16 | ~int32 | ~int64](name string) (T, error) {
	line, err := readValue(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(line, 10, bitSize[T]())
	if err != nil {
		return 0, err
	}
	return T(v), nil
}

// ReadUint reads an unsigned integer from the first line of the file, such as
// a brightness level.
func ReadUint[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](name string) (T, error) {
	line, err := readValue(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(line, 10, bitSize[T]())
	if err != nil {
		return 0, err
	}
	return T(v), nil
}

func readValue(name string) (string, error) {
	line, err := ReadLine(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func bitSize[T any]() int {
	var z T
	return int(unsafe.Sizeof(z) * 8)
}

// Exists checks whether the file exists.
func Exists(name string) bool {
	_, err := os.Stat(name)
	return !errors.Is(err, fs.ErrNotExist)
}

// Readable checks whether the file exists and is readable by the current
// process.
func Readable(name string) bool {
	return unix.Access(name, unix.R_OK) == nil
}

// Writable checks whether the file exists and is writable by the current
// process.
func Writable(name string) bool {
	return unix.Access(name, unix.W_OK) == nil
}

// Node is the path to a single-value control node.
type Node string

// Read reads the first line of the node.
func (n Node) Read() (string, error) {
	return ReadLine(string(n))
}

// Write writes value to the node.
func (n Node) Write(value string) error {
	return WriteLine(string(n), value)
}

// Int reads the node as an integer.
func (n Node) Int() (int, error) {
	return ReadInt[int](string(n))
}
