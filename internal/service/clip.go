package service

import (
	"context"
	"errors"
	"time"

	"clipstash/internal/biz"
	"clipstash/internal/domain"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewClipService)

const (
	ReasonClipNotFound    = "CLIP_NOT_FOUND"
	ReasonInvalidRequest  = "INVALID_REQUEST"
	ReasonInvalidPassword = "INVALID_PASSWORD"
	ReasonInternal        = "INTERNAL"
)

type CreateClipRequest struct {
	Content  string     `json:"content"`
	Title    string     `json:"title,omitempty"`
	Password string     `json:"password,omitempty"`
	Expires  *time.Time `json:"expires,omitempty"`
}

type GetClipRequest struct {
	ShortCode string `json:"shortcode"`
	Password  string `json:"password,omitempty"`
}

type UpdateClipRequest struct {
	ShortCode       string     `json:"shortcode"`
	CurrentPassword string     `json:"current_password,omitempty"`
	Content         string     `json:"content"`
	Title           string     `json:"title,omitempty"`
	Password        string     `json:"password,omitempty"`
	Expires         *time.Time `json:"expires,omitempty"`
}

type ClipReply struct {
	ShortCode string     `json:"shortcode"`
	Content   string     `json:"content"`
	Title     string     `json:"title,omitempty"`
	Posted    time.Time  `json:"posted"`
	Expires   *time.Time `json:"expires,omitempty"`
	Protected bool       `json:"protected"`
	Hits      uint64     `json:"hits"`
}

type ClipService struct {
	uc *biz.ClipUsecase
}

func NewClipService(uc *biz.ClipUsecase) *ClipService {
	return &ClipService{uc: uc}
}

func (s *ClipService) CreateClip(ctx context.Context, req *CreateClipRequest) (*ClipReply, error) {
	c, err := s.uc.CreateClip(ctx, req.Content, req.Title, req.Password, req.Expires)
	if err != nil {
		return nil, toStatus(err)
	}
	return toClipReply(c), nil
}

func (s *ClipService) GetClip(ctx context.Context, req *GetClipRequest) (*ClipReply, error) {
	c, err := s.uc.GetClip(ctx, req.ShortCode, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return toClipReply(c), nil
}

func (s *ClipService) UpdateClip(ctx context.Context, req *UpdateClipRequest) (*ClipReply, error) {
	c, err := s.uc.UpdateClip(ctx, req.ShortCode, req.CurrentPassword, req.Content, req.Title, req.Password, req.Expires)
	if err != nil {
		return nil, toStatus(err)
	}
	return toClipReply(c), nil
}

func toClipReply(c *domain.Clip) *ClipReply {
	return &ClipReply{
		ShortCode: c.ShortCode().String(),
		Content:   c.Content(),
		Title:     c.Title(),
		Posted:    c.Posted(),
		Expires:   c.Expires(),
		Protected: c.HasPassword(),
		Hits:      c.Hits(),
	}
}

// toStatus maps domain errors to kratos errors carrying an HTTP status.
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrClipNotFound), errors.Is(err, domain.ErrClipExpired):
		return kerrors.NotFound(ReasonClipNotFound, "clip not found")
	case errors.Is(err, domain.ErrInvalidPassword):
		return kerrors.Forbidden(ReasonInvalidPassword, err.Error())
	case errors.Is(err, domain.ErrInvalidCode), errors.Is(err, domain.ErrEmptyContent):
		return kerrors.BadRequest(ReasonInvalidRequest, err.Error())
	default:
		return kerrors.InternalServer(ReasonInternal, "internal error").WithCause(err)
	}
}
