//go:build !linux

package device

func fadviseSequential(fd int, offset, length int64) error { return nil }

func fadviseDontNeed(fd int, offset, length int64) error { return nil }
