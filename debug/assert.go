//go:build debug

package debug

const Enabled = true

func Assert(b bool, message string) {
	if !b {
		panic(message)
	}
}
