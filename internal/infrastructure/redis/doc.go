// Package redis provides the Redis connection used for API rate limiting.
//
// The limiter counts requests per key in fixed one-minute windows. Keys are
// built by the caller (client IP, or user ID once authenticated). When Redis
// is unreachable the limiter fails open: requests are allowed and the error
// is returned for logging.
package redis
