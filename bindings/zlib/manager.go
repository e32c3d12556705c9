package zlib

import (
	"github.com/amikos-tech/pure-dynload/dynload"
)

// Manager shares one loaded zlib across goroutines.
type Manager = dynload.Manager[*Library]

// NewManager returns an empty manager whose GlobalInit loads a fresh Library built with opts.
func NewManager(opts ...dynload.Option) (*Manager, error) {
	return dynload.NewManager(func() (*Library, error) {
		return New(opts...)
	}, dynload.WithManagerName[*Library]("zlib"))
}
