// Package embedded links every in-process plugin into the binary. Import it
// for side effects.
package embedded

import (
	_ "github.com/FocuswithJustin/strutils/internal/commands/strutils"
)
