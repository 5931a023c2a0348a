// Package log provides slog handlers that keep credentials out of sitegen's
// log output.
//
// Request headers are forwarded verbatim to page templates and the S3 store
// reads AWS credentials from the environment, so both may end up in debug
// logs. SecureHandler masks them:
//   - attributes whose key names a credential (Authorization, Cookie,
//     aws_secret_access_key, token, ...)
//   - values that look like one (bearer or basic auth, JWTs, AWS access keys,
//     PEM private keys)
//   - entries of header maps passed as a single attribute
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("forwarding request headers", "headers", map[string]string{
//	    "cookie": "session=abc123", // logged as ***REDACTED***
//	})
package log
