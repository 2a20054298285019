// Copyright (c) 2024 The Kestrel Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package utils

import (
	"bytes"
	"fmt"
	"os/exec"
)

func Assert(cond bool, format string, msg ...interface{}) {
	if !cond {
		panic(fmt.Sprintf(format, msg...))
	}
}

func Unimplement() {
	panic("Not implement yet")
}

func Abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	println(msg)
	panic(msg)
}

func Align16(n int) int {
	return (n + 15) &^ 15
}

// CommandExists reports whether cmd is resolvable on PATH.
func CommandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// ExecuteCmd runs args in workDir and returns its combined stdout/stderr
// together with its exit code. A compiled kestrel binary's exit code is
// itself part of what a caller asserts on, so a nonzero exit is reported
// back rather than treated as a failure the way a build-step invocation
// (assembling, linking) would be — those still call Fatal on a non-exit
// error, since there's nothing useful to assert on from a command that
// never ran to completion.
func ExecuteCmd(workDir string, args ...string) (output string, exitCode int) {
	if !CommandExists(args[0]) {
		Fatal("utils: command %q not found on PATH", args[0])
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = workDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if err == nil {
		return out.String(), 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return out.String(), exitErr.ExitCode()
	}
	Fatal("utils: running %v failed: %s\n%s", args, err, out.String())
	return "", -1
}
