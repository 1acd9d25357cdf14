package common

// SessionCookieName is the cookie that carries the signed session token.
const SessionCookieName = "session"

// RequestIDHeaderName is the header echoed back with the request id.
const RequestIDHeaderName = "X-Request-ID"
