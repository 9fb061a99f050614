package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

// envelope mirrors the daemon's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func getJSON(path string) error {
	resp, err := httpClient.Get(serverAddr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func postJSON(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(serverAddr+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

// printResponse unwraps the envelope: data is pretty-printed, errors are
// returned so the command exits nonzero.
func printResponse(resp *http.Response) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, raw)
	}
	if !env.Success {
		return fmt.Errorf("%s (%d)", env.Error, resp.StatusCode)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		fmt.Println("ok")
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, env.Data, "", "  "); err != nil {
		fmt.Println(string(env.Data))
		return nil
	}
	pretty.WriteTo(os.Stdout)
	fmt.Println()
	return nil
}
