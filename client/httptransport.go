package client

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/foomo/catalogserver/pkg/handler"
	"github.com/foomo/catalogserver/responses"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type (
	httpTransport struct {
		client   *http.Client
		endpoint string
	}
	envelope struct {
		Reply jsoniter.RawMessage `json:"reply"`
	}
)

// newHTTPTransport will create a new http transport for the given server and client.
// Caution: the provided server url is not validated!
func newHTTPTransport(server string, client *http.Client) transport {
	return &httpTransport{
		endpoint: server,
		client:   client,
	}
}

func (ht *httpTransport) shutdown() {
	ht.client.CloseIdleConnections()
}

func (ht *httpTransport) call(ctx context.Context, route handler.Route, request interface{}, response interface{}) error {
	requestBytes, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}
	req, err := http.NewRequestWithContext(ctx,
		http.MethodPost,
		ht.endpoint+"/"+string(route),
		bytes.NewBuffer(requestBytes),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	httpResponse, err := ht.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to call server")
	}
	defer httpResponse.Body.Close()

	responseBytes, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	var reply envelope
	if err := json.Unmarshal(responseBytes, &reply); err != nil || reply.Reply == nil {
		return errors.Errorf("unexpected reply with status %q", httpResponse.Status)
	}

	if httpResponse.StatusCode != http.StatusOK {
		errReply := &responses.Error{}
		if err := json.Unmarshal(reply.Reply, errReply); err != nil {
			return errors.Wrapf(err, "failed to decode error reply with status %q", httpResponse.Status)
		}
		return errReply
	}
	if response == nil {
		return nil
	}
	return json.Unmarshal(reply.Reply, response)
}
