package ipc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/FocuswithJustin/strutils/internal/logging"
)

// maxLine bounds a single request line.
const maxLine = 16 << 20

// Serve runs the request loop: it reads newline-delimited requests from r
// until EOF or ctx is done and writes one response line per request to w.
// Blank lines are skipped and undecodable lines get an error response.
func (p *Plugin) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp *Response
		req, err := ReadRequest(strings.NewReader(line))
		if err != nil {
			resp = Fail(nil, err.Error())
			resp.Code = CodeInvalidInput
		} else {
			logging.Debug("ipc_request", "id", req.ID, "command", req.Command)
			resp = p.Handle(req)
		}
		if err := WriteResponse(w, resp); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
