package goplus

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/utrading/utrading-market-dashboard/pkg/logger"
)

// Recover logs a recovered panic with its call stack. Use as
// `defer goplus.Recover()` at the top of a goroutine.
func Recover() {
	if r := recover(); r != nil {
		const maxDepth = 32

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("panic: %v\ncallers:\n", r))
		for i := 1; i <= maxDepth; i++ {
			_, file, line, ok := runtime.Caller(i)
			if !ok {
				break
			}
			sb.WriteString(fmt.Sprintf("%s:%d\n", file, line))
		}

		logger.Error().Msg(sb.String())
	}
}
