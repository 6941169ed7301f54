// Package middlewares holds the global middleware canopy installs.
//
// RequestID assigns an id to every request and stores it for the logger
// and the error handler. AccessLog writes one line per request. Recover
// converts panics into a 500 whose cause is a *PanicError.
//
//	app := canopy.New(
//	    canopy.WithLogger(logger.New(cfg.Log, logger.RequestIDExtractor(), logger.ModeExtractor())),
//	    canopy.WithMiddleware(
//	        middlewares.RequestID(),
//	        middlewares.AccessLog(),
//	        middlewares.Recover(),
//	    ),
//	)
//
// Order matters: Recover must sit inside AccessLog so the logged status is
// the 500 the error handler will send.
package middlewares
