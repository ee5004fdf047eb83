// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package errchain

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"

	"github.com/stacklok/errorflynn/httperr"
	"github.com/stacklok/errorflynn/recovery"
)

// SettingEnv names the application setting holding the deployment environment.
const SettingEnv = "env"

// DefaultEnv is the value of SettingEnv unless configured otherwise.
const DefaultEnv = "development"

// DefaultBodyLimit bounds how many request body bytes are parsed.
const DefaultBodyLimit = 1 << 20

// Next continues the error chain. Passing nil ends it.
type Next func(err error)

// ErrorHandler is error middleware. It receives the error raised while serving
// r and must call next exactly once to hand the error on.
type ErrorHandler func(err error, w http.ResponseWriter, r *http.Request, next Next)

// HandlerFunc is a request handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// App routes requests to HandlerFuncs and runs returned errors through the
// registered error middleware.
type App struct {
	router chi.Router

	mu            sync.RWMutex
	settings      map[string]string
	errorHandlers []ErrorHandler
	bodyLimit     int64
}

// Option configures an App.
type Option func(*App)

// WithSetting sets an application setting at construction.
func WithSetting(key, value string) Option {
	return func(a *App) {
		a.settings[key] = value
	}
}

// WithBodyLimit sets the maximum number of body bytes parsed per request.
func WithBodyLimit(n int64) Option {
	return func(a *App) {
		a.bodyLimit = n
	}
}

// New creates an App.
func New(opts ...Option) *App {
	a := &App{
		router:    chi.NewRouter(),
		settings:  map[string]string{SettingEnv: DefaultEnv},
		bodyLimit: DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Set stores an application setting.
func (a *App) Set(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings[key] = value
}

// Setting returns an application setting, or "".
func (a *App) Setting(key string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings[key]
}

// Use appends net/http middleware. As with chi, all middleware must be
// registered before the first route.
func (a *App) Use(middlewares ...func(http.Handler) http.Handler) {
	a.router.Use(middlewares...)
}

// UseError appends error middleware. Handlers run in registration order.
func (a *App) UseError(handlers ...ErrorHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorHandlers = append(a.errorHandlers, handlers...)
}

// Get routes GET requests for pattern to h.
func (a *App) Get(pattern string, h HandlerFunc) {
	a.router.Method(http.MethodGet, pattern, a.Wrap(h))
}

// Post routes POST requests for pattern to h.
func (a *App) Post(pattern string, h HandlerFunc) {
	a.router.Method(http.MethodPost, pattern, a.Wrap(h))
}

// Put routes PUT requests for pattern to h.
func (a *App) Put(pattern string, h HandlerFunc) {
	a.router.Method(http.MethodPut, pattern, a.Wrap(h))
}

// Delete routes DELETE requests for pattern to h.
func (a *App) Delete(pattern string, h HandlerFunc) {
	a.router.Method(http.MethodDelete, pattern, a.Wrap(h))
}

// Handle routes requests of any method for pattern to h.
func (a *App) Handle(pattern string, h HandlerFunc) {
	a.router.Handle(pattern, a.Wrap(h))
}

// Mount attaches a plain http.Handler, such as a metrics endpoint, under pattern.
func (a *App) Mount(pattern string, h http.Handler) {
	a.router.Mount(pattern, h)
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), appKey{}, a)))
}

// Wrap adapts h to an http.Handler. The request body is parsed first; a
// malformed body is reported as a 400 error. Panics in h become 500 errors.
// Any error goes through the error chain.
func (a *App) Wrap(h HandlerFunc) http.Handler {
	guarded := recovery.Guard(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(appKey{}).(*App); !ok {
			r = r.WithContext(context.WithValue(r.Context(), appKey{}, a))
		}

		var wrote atomic.Bool
		tracked := httpsnoop.Wrap(w, httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					wrote.Store(true)
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					wrote.Store(true)
					return next(b)
				}
			},
		})

		r, err := parseBody(r, a.bodyLimit)
		if err == nil {
			err = guarded(tracked, r)
		}
		if err != nil {
			a.handleError(err, tracked, r, wrote.Load)
		}
	})
}

// HandleError runs err through the error middleware and the final status writer.
func (a *App) HandleError(err error, w http.ResponseWriter, r *http.Request) {
	a.handleError(err, w, r, func() bool { return false })
}

func (a *App) handleError(err error, w http.ResponseWriter, r *http.Request, written func() bool) {
	a.mu.RLock()
	handlers := append([]ErrorHandler(nil), a.errorHandlers...)
	a.mu.RUnlock()

	var run func(i int, err error)
	run = func(i int, err error) {
		if err == nil {
			return
		}
		if i == len(handlers) {
			if !written() {
				writeStatus(w, err)
			}
			return
		}
		var called atomic.Bool
		handlers[i](err, w, r, func(next error) {
			if called.Swap(true) {
				return
			}
			run(i+1, next)
		})
	}
	run(0, err)
}

// writeStatus answers with the status carried by err and its status text.
func writeStatus(w http.ResponseWriter, err error) {
	code := httperr.Code(err)
	http.Error(w, http.StatusText(code), code)
}

type appKey struct{}

// Setting returns the setting key of the App serving r, or "" when r is not
// served by an App.
func Setting(r *http.Request, key string) string {
	a, ok := r.Context().Value(appKey{}).(*App)
	if !ok {
		return ""
	}
	return a.Setting(key)
}
