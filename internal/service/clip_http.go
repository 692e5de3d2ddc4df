package service

import (
	"context"
	nethttp "net/http"

	"github.com/go-kratos/kratos/v2/transport/http"
)

// PasswordHeader carries the password of a protected clip on reads.
const PasswordHeader = "X-Clip-Password"

// RegisterClipHTTPServer registers the clip routes on s.
func RegisterClipHTTPServer(s *http.Server, srv *ClipService) {
	r := s.Route("/")
	r.POST("/api/clip", createClipHandler(srv))
	r.GET("/api/clip/{shortcode}", getClipHandler(srv))
	r.PUT("/api/clip/{shortcode}", updateClipHandler(srv))
}

func createClipHandler(srv *ClipService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CreateClipRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CreateClip(ctx, req.(*CreateClipRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusCreated, out)
	}
}

func getClipHandler(srv *ClipService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := GetClipRequest{
			ShortCode: ctx.Vars().Get("shortcode"),
			Password:  ctx.Request().Header.Get(PasswordHeader),
		}
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetClip(ctx, req.(*GetClipRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, out)
	}
}

func updateClipHandler(srv *ClipService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in UpdateClipRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		in.ShortCode = ctx.Vars().Get("shortcode")
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.UpdateClip(ctx, req.(*UpdateClipRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, out)
	}
}
