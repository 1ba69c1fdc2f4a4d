package safe

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"satstack.com/pkg/logger"
)

// Go runs fn in a goroutine that logs instead of crashing the process on panic.
func Go(fn func()) {
	GoCtx(context.Background(), func(context.Context) { fn() })
}

// GoCtx is Go with a context whose request/trace ids end up in the panic log.
func GoCtx(ctx context.Context, fn func(ctx context.Context)) {
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer recoverAndLog(ctx)
		fn(ctx)
	}()
}

func recoverAndLog(ctx context.Context) {
	r := recover()
	if r == nil {
		return
	}
	stack := string(debug.Stack())
	if logger.Log == nil {
		fmt.Printf("goroutine panic: %v\n%s\n", r, stack)
		return
	}
	logger.Error(ctx, "goroutine panic recovered",
		zap.Any("panic", r),
		zap.String("stack", stack),
	)
}
