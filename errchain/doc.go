// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package errchain is a small application framework on top of chi in which
handlers return errors and errors travel through a chain of error middleware.

# Handlers and Error Middleware

	app := errchain.New(errchain.WithSetting(errchain.SettingEnv, "production"))

	app.Get("/404", func(w http.ResponseWriter, r *http.Request) error {
		return httperr.New("Not Found!", http.StatusNotFound)
	})

	app.UseError(func(err error, w http.ResponseWriter, r *http.Request, next errchain.Next) {
		log.Println(err)
		next(err)
	})

Error middleware runs in registration order and must call next exactly once;
extra calls are ignored and next(nil) ends the chain. After the last error
middleware the error's status (httperr.Code, 500 by default) is written with
its status text, unless the handler already started the response.

Panics in handlers become 500 errors carrying the panic stack (see
recovery.Guard) and take the same path.

# Settings

Application settings are plain strings readable from any request served by the
App. SettingEnv defaults to DefaultEnv:

	env := errchain.Setting(r, errchain.SettingEnv)

# Request Bodies

JSON, url-encoded form and text/plain bodies up to the body limit are parsed
before the handler runs and are available through Body. The raw bytes remain
readable on r.Body. A malformed body is a 400 error.
*/
package errchain
