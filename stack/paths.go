package stack

import (
	"path/filepath"
	"runtime"
)

// moduleRoot is the directory holding go.mod, used as the Lambda build
// context.
func moduleRoot() string {
	return filepath.Join(getThisFileDir(), "..")
}

func assetDir(name string) string {
	return filepath.Join(moduleRoot(), "assets", name)
}

func getThisFileDir() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("unable to get current file path")
	}
	return filepath.Dir(filename)
}
