package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// request performs one API call and decodes the JSON body regardless of
// status, so error payloads stay available to the caller.
func (a *app) request(method, path string, body any) (map[string]any, int, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, strings.TrimRight(a.server, "/")+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: a.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return decoded, resp.StatusCode, nil
}

func (a *app) get(path string) (map[string]any, int, error) {
	return a.request(http.MethodGet, path, nil)
}

func (a *app) post(path string, body any) (map[string]any, int, error) {
	return a.request(http.MethodPost, path, body)
}

// dialSocket opens the push socket and consumes the greeting status.
func (a *app) dialSocket() (*websocket.Conn, error) {
	url := strings.Replace(strings.TrimRight(a.server, "/"), "http", "ws", 1) + "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: a.timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Now().Add(a.timeout))
	var greeting map[string]any
	if err := conn.ReadJSON(&greeting); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// awaitSocket reads until one of the wanted message types arrives.
func (a *app) awaitSocket(conn *websocket.Conn, types ...string) (map[string]any, error) {
	wanted := make(map[string]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}
	deadline := time.Now().Add(a.timeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return nil, err
		}
		if t, _ := msg["type"].(string); wanted[t] {
			return msg, nil
		}
	}
}

func (a *app) printJSON(v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(payload))
	return err
}

func stringField(msg map[string]any, key string) string {
	val, _ := msg[key].(string)
	return val
}
