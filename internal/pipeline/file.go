package pipeline

import (
	"path"
	"strings"
)

// File is one file flowing through a pipeline.
type File struct {
	// Path is slash-separated and relative to the project root.
	Path string
	// Base is the directory Path is written relative to.
	Base     string
	Contents []byte
	// Data carries values between stages, e.g. parsed front matter.
	Data map[string]interface{}
}

// NewFile creates a file with an empty data map.
func NewFile(filePath, base string, contents []byte) *File {
	return &File{
		Path:     filePath,
		Base:     base,
		Contents: contents,
		Data:     make(map[string]interface{}),
	}
}

// Rel returns Path relative to Base; this is the path below the output
// directory.
func (f *File) Rel() string {
	if f.Base == "" || f.Base == "." {
		return f.Path
	}
	return strings.TrimPrefix(f.Path, f.Base+"/")
}

// Name returns the file name without directory and extension.
func (f *File) Name() string {
	return strings.TrimSuffix(path.Base(f.Path), path.Ext(f.Path))
}

// SetExt replaces the extension of Path.
func (f *File) SetExt(ext string) {
	f.Path = strings.TrimSuffix(f.Path, path.Ext(f.Path)) + ext
}

// Clone returns a copy that shares no mutable state with f.
func (f *File) Clone() *File {
	c := NewFile(f.Path, f.Base, append([]byte(nil), f.Contents...))
	for k, v := range f.Data {
		c.Data[k] = v
	}
	return c
}
