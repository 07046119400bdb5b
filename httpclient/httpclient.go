package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

var (
	ErrStatusCodeMismatch  = errors.New("status code mismatch")
	ErrContentTypeMismatch = errors.New("content type mismatch")
	ErrRejectedByServer    = errors.New("rejected by server")
)

type errorResponse struct {
	Error string `json:"error"`
}

// MakePost sends out as JSON body of POST request to the url and decodes JSON response in to in.
func MakePost(timeout time.Duration, url string, out, in any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	req.SetBody(raw)

	return do(timeout, req, in)
}

// MakeGet sends GET request to the url and decodes JSON response in to out.
func MakeGet(timeout time.Duration, url string, out any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	return do(timeout, req, out)
}

func do(timeout time.Duration, req *fasthttp.Request, in any) error {
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := fasthttp.DoTimeout(req, resp, timeout); err != nil {
		return err
	}

	switch resp.StatusCode() {
	case fasthttp.StatusOK, fasthttp.StatusCreated, fasthttp.StatusAccepted:
	case fasthttp.StatusNoContent:
		return nil
	default:
		return rejection(resp)
	}

	contentType := resp.Header.Peek(fasthttp.HeaderContentType)
	if !bytes.HasPrefix(contentType, []byte("application/json")) {
		return errors.Join(
			ErrContentTypeMismatch,
			fmt.Errorf("expected content type application/json but got %s", contentType))
	}

	return json.Unmarshal(resp.Body(), in)
}

func rejection(resp *fasthttp.Response) error {
	status := errors.Join(
		ErrStatusCodeMismatch,
		fmt.Errorf("expected status code %d but got %d", fasthttp.StatusOK, resp.StatusCode()))

	var e errorResponse
	if err := json.Unmarshal(resp.Body(), &e); err != nil || e.Error == "" {
		return status
	}
	return errors.Join(ErrRejectedByServer, errors.New(e.Error), status)
}
