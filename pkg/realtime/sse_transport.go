/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package realtime

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// SSEDialer implements StreamDialer over HTTP text/event-stream responses.
type SSEDialer struct {
	Client *http.Client
	Header http.Header
}

// NewSSEDialer creates a dialer that sends headers with every subscribe request
func NewSSEDialer(headers map[string]string) *SSEDialer {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &SSEDialer{
		Client: http.DefaultClient,
		Header: h,
	}
}

// Subscribe issues the GET request and returns the event stream once the
// server has answered 200 with a text/event-stream body.
func (d *SSEDialer) Subscribe(ctx context.Context, endpoint string) (EventStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	for k, vs := range d.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stream request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream request failed with status %d", resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "text/event-stream" {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected stream content type %q", resp.Header.Get("Content-Type"))
	}

	return newSSEStream(resp.Body), nil
}

// sseStream parses the text/event-stream wire format.
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	lastID string
}

func newSSEStream(body io.ReadCloser) *sseStream {
	return &sseStream{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Next reads lines until a blank line dispatches an event. Events without any
// data field are discarded. A partial event at end of stream is dropped.
func (s *sseStream) Next() (Event, error) {
	var data bytes.Buffer
	hasData := false
	eventType := ""

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return Event{}, err
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		if line == "" {
			if !hasData {
				eventType = ""
				continue
			}
			return Event{ID: s.lastID, Type: eventType, Data: data.Bytes()}, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			eventType = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastID = value
			}
		case "retry":
			// Reconnect delay is owned by the EventChannel.
		}
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
