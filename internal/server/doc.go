// Package server provides HTTP routing, middleware and the handlers of the now playing web service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// Route-level middleware passed to [BasicRouter.Handle] or [BasicRouter.Handler] runs inside the router-wide stack.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// Each handler dispatches through its own [http.ServeMux] so method and path-value matching stay local to it.
//
// # Routes
//
//	GET /auth/login                 → 302 to the provider consent page
//	GET /callback                   → 302 /success?username=..., 400 "Invalid state", 500 "Authentication failed"
//	GET /api/nowplaying/{username}  → now-playing JSON
//	GET /api/toptracks/{username}   → top tracks JSON (limit, time_range)
//	GET /api/recent/{username}      → recently played JSON (limit)
//	GET /, /success, /{username}    → HTML pages
//
// JSON errors have the shape {"error": "..."}: 404 for unknown users, 401 when no access token is on record,
// 429 from the rate limiter and 500 for provider failures.
//
// # Middleware
//
//   - [RequestID] : X-Request-ID propagation
//   - [Recovery] : panic to 500
//   - [Logging] : one structured line per request
//   - [RateLimiter] : per-client token buckets on the auth and API routes
package server
