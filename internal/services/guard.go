package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// once runs create at most once for identical submissions that overlap in
// time. Concurrent callers with the same kind and payload share one store
// request and its result; a later identical submission runs again.
//
// The shared request runs on a context detached from the first caller's
// cancellation, so a dropped connection does not fail the callers that
// joined it.
func once[T any](ctx context.Context, l *Ledger, kind Kind, payload any, create func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := submissionKey(kind, payload)
	if err != nil {
		return zero, err
	}
	shared := context.WithoutCancel(ctx)
	ch := l.inflight.DoChan(key, func() (any, error) {
		return create(shared)
	})
	if l.joined != nil {
		l.joined(kind)
	}
	res := <-ch
	if res.Shared {
		l.logger.DebugContext(ctx, "Collapsed duplicate submission", "kind", string(kind))
	}
	if res.Err != nil {
		return zero, res.Err
	}
	return res.Val.(T), nil
}

func submissionKey(kind Kind, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return string(kind) + ":" + hex.EncodeToString(sum[:]), nil
}
