// Package dispatch implements the request dispatch pipeline: the
// ordered, short-circuiting sequence of stages that turns one inbound
// HTTP request into one action invocation and exactly one response.
//
// # Stages
//
// Per request, in order, each a potential exit to the error mapper:
//
//  1. Path match against the route table (first match by declaration
//     order); unmatched paths fall back to the static-asset handler
//     when one is configured, else 404.
//  2. Alias resolution (never fails).
//  3. Whitelist check (ServiceNotFound on denial).
//  4. Body parsing (InvalidRequestBody on the first decoder failure).
//  5. Parameter merge; body fields win over query parameters.
//  6. Action resolution and optional schema validation.
//  7. Request-context creation.
//  8. Authorization, only on routes that require it (Forbidden when no
//     identity is returned).
//  9. Invocation through the action runtime.
//  10. Finalize: timestamps and the request-log record, on both the
//     success and the error path.
//
// Every failure at any stage is caught at the single pipeline boundary
// and written as a JSON error body; none propagates out of ServeHTTP.
package dispatch
