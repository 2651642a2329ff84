//go:build !linux

package stream

import "os"

func syncData(f *os.File) error {
	return f.Sync()
}
