package internal

// Handler declares routes on a router.
//
//	type StatusHandler struct{}
//
//	func (h *StatusHandler) Routes(r canopy.Router) {
//	    r.GET("/status", h.show)
//	}
type Handler interface {
	Routes(r Router)
}

// HandlerFunc handles a request. A returned error goes to the error handler.
type HandlerFunc func(c Context) error

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler answers errors returned from handlers.
type ErrorHandler func(Context, error) error
