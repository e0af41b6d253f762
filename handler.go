package strand

// Handler acts on a request context. A handler either sends a response
// or passes control on, with ctx.Next, ctx.NextWith, ctx.Insert or by
// delegating to error handling through ctx.Error and ctx.ClientError.
//
// Handlers run on the goroutine serving the request, one after another
// in chain order. Code after a call to ctx.Next runs once every
// downstream handler has returned, so a handler can observe what was
// sent:
//
//	func Timing(ctx *strand.Context) {
//		start := time.Now()
//		ctx.Next()
//		ctx.Logger().Info("served", zap.Duration("took", time.Since(start)))
//	}
type Handler func(ctx *Context)

// Handlers composes handlers into one. The composite inserts them into
// the pipeline, so they run with the registry and path binding in scope
// at that point and hand over to whatever follows the composite once
// they are exhausted.
func Handlers(handlers ...Handler) Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	hs := append([]Handler(nil), handlers...)
	return func(ctx *Context) {
		ctx.Insert(hs...)
	}
}

// Next is the handler that only passes control on.
func Next(ctx *Context) {
	ctx.Next()
}
