package routing

import "context"

// Origin describes where a webhook came from: the carrier and the client IP
// it connected from. Webhook middleware attaches it; the audit adapter reads it.
type Origin struct {
	IP       string
	Provider string
}

type originKey struct{}

func WithOrigin(ctx context.Context, o Origin) context.Context {
	if o == (Origin{}) {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, o)
}

// OriginFrom returns the zero Origin when none was attached.
func OriginFrom(ctx context.Context) Origin {
	o, _ := ctx.Value(originKey{}).(Origin)
	return o
}
