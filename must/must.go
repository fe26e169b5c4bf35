// Package must holds construction-time assertions for conditions that are
// programmer errors, never runtime failures.
package must

func Be(expr bool, msg string) {
	if !expr {
		panic("assertion failed: " + msg)
	}
}
