// Package problemdetails renders errors as RFC 7807 problem documents.
package problemdetails

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-kratos/kratos/v2/errors"
)

const ContentType = "application/problem+json"

const (
	TypeInvalidRequest = "invalid-request"
	TypeForbidden      = "forbidden"
	TypeNotFound       = "not-found"
	TypeInternalError  = "internal-error"
)

type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func New(status int, problemType, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   fmt.Sprintf("/problems/%s", problemType),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// FromError converts err into a problem. Errors that carry no kratos status
// become an internal error whose detail is not exposed.
func FromError(err error) *ProblemDetail {
	se := errors.FromError(err)
	status := int(se.Code)

	var p *ProblemDetail
	switch {
	case status == http.StatusNotFound:
		p = New(status, TypeNotFound, "Not Found", se.Message)
	case status == http.StatusForbidden:
		p = New(status, TypeForbidden, "Forbidden", se.Message)
	case status >= 400 && status < 500:
		p = New(status, TypeInvalidRequest, http.StatusText(status), se.Message)
	default:
		return New(http.StatusInternalServerError, TypeInternalError, "Internal Server Error", "")
	}
	p.Reason = se.Reason
	return p
}

// ErrorEncoder writes err as a problem document. It fits kratos'
// http.ErrorEncoder server option.
func ErrorEncoder(w http.ResponseWriter, _ *http.Request, err error) {
	p := FromError(err)
	body, mErr := json.Marshal(p)
	if mErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_, _ = w.Write(body)
}
