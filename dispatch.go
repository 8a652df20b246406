package tugraph

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arloliu/tugraph/session"
	"github.com/arloliu/tugraph/types"
)

// tracerName is the instrumentation scope of client spans.
const tracerName = "github.com/arloliu/tugraph"

// route selects which node serves a call.
type route struct {
	kind types.RequestKind

	// node is the target address for node-targeted calls.
	node string
}

var (
	readRoute  = route{kind: types.KindRead}
	writeRoute = route{kind: types.KindWrite}
)

func nodeRoute(addr string) route {
	return route{kind: types.KindNode, node: addr}
}

func routeFor(readOnly bool) route {
	if readOnly {
		return readRoute
	}

	return writeRoute
}

// callFunc performs one call on a resolved session.
type callFunc func(ctx context.Context, sess *session.Session) (string, error)

// dispatch runs fn on the node selected by r.
//
// If the attempt fails with a retriable error, the caller's context is still
// live and the refresh policy agrees, the topology is refreshed once and the
// call is retried once against the new snapshot. The retry's error is
// returned unmodified.
func (c *Client) dispatch(ctx context.Context, op string, r route, fn callFunc) (string, error) {
	if c.closed.Load() {
		return "", types.ErrClientClosed
	}

	if c.mode == types.ModeSingle {
		if r.kind == types.KindNode && r.node != c.bootstrap.Addr() {
			return "", types.ErrNodeNotFound
		}

		return c.invoke(ctx, op, r.kind, 1, node{
			desc: types.NodeDescriptor{RPCAddress: c.bootstrap.Addr(), Role: types.RoleLeader},
			sess: c.bootstrap,
		}, fn)
	}

	result, failedNode, err := c.attempt(ctx, op, r, 1, fn)
	if err == nil {
		return result, nil
	}
	if !types.IsRetriable(err) || ctx.Err() != nil {
		return "", err
	}
	if !c.config.RefreshPolicy.ShouldRefresh(failedNode, err) {
		return "", err
	}

	c.config.Metrics.IncRetryTotal(op)
	c.config.Logger.Warn("call failed, refreshing topology before retry",
		"operation", op,
		"node", failedNode,
		"error", err,
	)

	if rerr := c.refresh(ctx); rerr != nil {
		return "", rerr
	}

	result, _, err = c.attempt(ctx, op, r, 2, fn)

	return result, err
}

// attempt pins the current snapshot, resolves the target and invokes fn.
// It returns the address of the node it tried, if any.
func (c *Client) attempt(ctx context.Context, op string, r route, attempt int, fn callFunc) (string, string, error) {
	snap := c.snapshots.acquire()
	if snap == nil {
		if c.closed.Load() {
			return "", "", types.ErrClientClosed
		}

		return "", "", &types.RefreshError{Reason: "no topology"}
	}
	defer snap.release()

	target, err := c.resolve(ctx, snap, r)
	if err != nil {
		return "", r.node, err
	}

	result, err := c.invoke(ctx, op, r.kind, attempt, target, fn)

	return result, target.desc.RPCAddress, err
}

// resolve picks the node that serves r within snap.
func (c *Client) resolve(ctx context.Context, snap *snapshot, r route) (node, error) {
	switch r.kind {
	case types.KindNode:
		n, ok := snap.find(r.node)
		if !ok {
			return node{}, types.ErrNodeNotFound
		}

		return n, nil

	case types.KindRead:
		followers := snap.followers(c.isDrained)
		if len(followers) > 0 {
			candidates := make([]string, len(followers))
			for i, f := range followers {
				candidates[i] = f.desc.RPCAddress
			}
			if addr, ok := c.config.ReadStrategy.Select(ctx, candidates); ok {
				for _, f := range followers {
					if f.desc.RPCAddress == addr {
						return f, nil
					}
				}
			}
		}
	}

	leader, ok := snap.leaderNode()
	if !ok {
		return node{}, types.ErrNoLeader
	}

	return leader, nil
}

// invoke runs fn against one node with tracing, metrics and feedback to the
// read strategy and refresh policy.
func (c *Client) invoke(ctx context.Context, op string, kind types.RequestKind, attempt int, target node, fn callFunc) (string, error) {
	addr := target.desc.RPCAddress
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "tugraph."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tugraph.node", addr),
			attribute.String("tugraph.role", target.desc.Role.String()),
			attribute.String("tugraph.kind", string(kind)),
			attribute.Int("tugraph.attempt", attempt),
			attribute.String("tugraph.request_id", requestID),
		),
	)
	defer span.End()

	c.config.Logger.Debug("dispatching call",
		"operation", op,
		"node", addr,
		"kind", kind,
		"attempt", attempt,
		"request_id", requestID,
	)

	start := time.Now()
	result, err := fn(ctx, target.sess)
	elapsed := time.Since(start).Seconds()

	c.config.Metrics.IncRequestTotal(addr, kind)
	c.config.Metrics.ObserveRequestDuration(addr, kind, elapsed)

	if err != nil {
		c.config.Metrics.IncRequestError(addr, kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if types.IsRetriable(err) {
			c.config.RefreshPolicy.RecordFailure(addr)
		}
		if kind == types.KindRead && target.desc.Role == types.RoleFollower {
			c.config.ReadStrategy.OnFailure(addr, err)
		}
		c.config.Logger.Debug("call failed",
			"operation", op,
			"node", addr,
			"request_id", requestID,
			"error", err,
		)

		return "", err
	}

	span.SetStatus(codes.Ok, "")
	c.config.RefreshPolicy.RecordSuccess(addr)
	if kind == types.KindRead && target.desc.Role == types.RoleFollower {
		c.config.ReadStrategy.OnSuccess(addr)
	}

	return result, nil
}
