package client

import (
	"context"

	"github.com/foomo/catalogserver/pkg/handler"
)

type transport interface {
	call(ctx context.Context, route handler.Route, request interface{}, response interface{}) error
	shutdown()
}
