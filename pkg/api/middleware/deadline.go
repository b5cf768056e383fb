package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// DeadlineHeader lets callers bound a request end to end, in milliseconds.
const DeadlineHeader = "X-Request-Deadline-Ms"

// maxClientDeadline caps client-requested deadlines so a bad header cannot
// pin server resources.
const maxClientDeadline = 5 * time.Minute

// Deadline derives the request context deadline from the client's
// X-Request-Deadline-Ms header. Backend calls inherit the deadline; on
// expiry their outcomes degrade to Timeout and the request still yields a
// decision. Invalid or absent headers leave the context unchanged.
func Deadline(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(DeadlineHeader)
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		ms, err := strconv.ParseInt(header, 10, 64)
		if err != nil || ms <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		timeout := time.Duration(ms) * time.Millisecond
		if timeout > maxClientDeadline {
			timeout = maxClientDeadline
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
