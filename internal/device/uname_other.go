//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package device

func uname() (release, machine string) { return "", "" }
