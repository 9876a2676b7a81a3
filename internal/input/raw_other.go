//go:build !unix

package input

import "os"

func rawSource(*os.File) KeySource { return nil }
