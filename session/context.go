package session

import "context"

type ctxKey string

const (
	accountKey     ctxKey = "account_id"
	downloadDirKey ctxKey = "download_dir"
	threadsKey     ctxKey = "threads_override"
)

// WithAccount returns a new context that carries the account key. Empty means "default".
func WithAccount(ctx context.Context, accountID string) context.Context {
	if accountID == "" {
		accountID = "default"
	}
	return context.WithValue(ctx, accountKey, accountID)
}

// Account extracts the account key from context, falling back to "default".
func Account(ctx context.Context) string {
	if v := ctx.Value(accountKey); v != nil {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return "default"
}

// WithDownloadDir attaches a destination directory override to the context.
func WithDownloadDir(ctx context.Context, dir string) context.Context {
	if dir == "" {
		return ctx
	}
	return context.WithValue(ctx, downloadDirKey, dir)
}

// DownloadDir extracts the destination directory override from context.
func DownloadDir(ctx context.Context) string {
	if v := ctx.Value(downloadDirKey); v != nil {
		if dir, ok := v.(string); ok {
			return dir
		}
	}
	return ""
}

// WithThreads overrides download parallelism in context.
func WithThreads(ctx context.Context, threads int) context.Context {
	if threads <= 0 {
		return ctx
	}
	return context.WithValue(ctx, threadsKey, threads)
}

// ThreadsOverride returns an int pointer when an override is set.
func ThreadsOverride(ctx context.Context) *int {
	if v := ctx.Value(threadsKey); v != nil {
		if n, ok := v.(int); ok {
			return &n
		}
	}
	return nil
}
