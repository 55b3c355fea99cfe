package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

// Handler is an http handler that returns a Response instead of writing to
// the ResponseWriter directly. This keeps status/body handling in one place
// and makes handlers trivially testable.
type Handler func(r *http.Request, ps httprouter.Params) Response

// Response writes itself to the ResponseWriter.
type Response func(w http.ResponseWriter)

type Router struct {
	router *httprouter.Router
}

func NewRouter() *Router {
	return &Router{router: httprouter.New()}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) { r.router.ServeHTTP(w, req) }

func (r *Router) Handle(method, path string, fn Handler) {
	r.router.Handle(method, path, func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		start := time.Now()

		ww := &responseWrapper{ResponseWriter: w, status: 200}
		resp := fn(req, ps)
		if resp != nil {
			resp(ww)
		}
		slog.Info("http request", "url", req.URL.Path, "method", req.Method, "userAgent", req.UserAgent(), "latencyMS", time.Since(start).Milliseconds(), "status", ww.status)
	})
}

// Serve wires up the stdlib http server to the engine.
func (r *Router) Serve(addr string) Proc {
	return func(ctx context.Context) error {
		svr := &http.Server{Handler: r, Addr: addr}
		go func() {
			<-ctx.Done()
			slog.Warn("gracefully shutting down http server...")
			svr.Shutdown(context.Background())
		}()
		if err := svr.ListenAndServe(); err != nil {
			return err
		}
		slog.Info("the http server has shut down")
		return nil
	}
}

// JSON responds 200 with a JSON-serialized body.
func JSON(v any) Response { return JSONStatus(http.StatusOK, v) }

// JSONStatus responds with the given status and a JSON-serialized body.
func JSONStatus(status int, v any) Response {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("failed to encode response body", "error", err)
		}
	}
}

// Empty responds 204 with no body.
func Empty() Response {
	return func(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }
}

// Error logs the given error while returning a generic 500 to the client.
func Error(err error) Response {
	return func(w http.ResponseWriter) {
		slog.Error("unhandled error while serving request", "error", err)
		http.Error(w, "Internal error - please try again later", http.StatusInternalServerError)
	}
}

// ClientErrorf responds 400 with the given message.
func ClientErrorf(format string, args ...any) Response {
	return func(w http.ResponseWriter) {
		http.Error(w, fmt.Sprintf(format, args...), http.StatusBadRequest)
	}
}

// NotFoundf responds 404 with the given message.
func NotFoundf(format string, args ...any) Response {
	return func(w http.ResponseWriter) {
		http.Error(w, fmt.Sprintf(format, args...), http.StatusNotFound)
	}
}

type responseWrapper struct {
	http.ResponseWriter
	status int
}

func (w *responseWrapper) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
